// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file verifies the X-Hub-Signature-256 header WhatsApp attaches to
// webhook deliveries: an HMAC-SHA256 of the raw request body keyed with the
// app secret. A mismatch is rejected before any payload parsing happens.
package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// signatureHeader carries "sha256=<hex digest>".
const signatureHeader = "X-Hub-Signature-256"

// ValidSignature reports whether header matches the HMAC-SHA256 of body
// under secret. Comparison is constant-time.
func ValidSignature(body []byte, header, secret string) bool {
	if header == "" || secret == "" {
		return false
	}
	transmitted := strings.TrimPrefix(header, "sha256=")

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(transmitted), []byte(expected))
}

// VerifySignature returns a Gin middleware that authenticates webhook
// deliveries. When no app secret is configured, verification is skipped with
// a warning so local development still works; production deployments must
// set the secret.
//
// The middleware consumes the request body and restores it for the handler.
func VerifySignature(appSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if appSecret == "" {
			log.Warn().Msg("WHATSAPP_APP_SECRET not set, skipping signature verification")
			c.Next()
			return
		}

		raw, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.Writer.Header().Get("X-Request-ID"),
				"code":       "bad_request",
				"message":    "unreadable body",
			})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(raw))

		if !ValidSignature(raw, c.GetHeader(signatureHeader), appSecret) {
			log.Warn().Str("remote_ip", c.ClientIP()).Msg("webhook signature verification failed")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"request_id": c.Writer.Header().Get("X-Request-ID"),
				"code":       "forbidden",
				"message":    "invalid signature",
			})
			return
		}
		c.Next()
	}
}
