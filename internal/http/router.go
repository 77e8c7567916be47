// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging, panic recovery, metrics, webhook
// signature verification, CORS, security headers, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - The webhook path stays cheap: signature check, parse, dispatch, ack
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/maachbazar/maachbazar-bot/internal/channel/whatsapp"
	"github.com/maachbazar/maachbazar-bot/internal/config"
	"github.com/maachbazar/maachbazar-bot/internal/http/handlers"
	"github.com/maachbazar/maachbazar-bot/internal/http/middleware"
	"github.com/maachbazar/maachbazar-bot/internal/llm"
	"github.com/maachbazar/maachbazar-bot/internal/services"
	"github.com/maachbazar/maachbazar-bot/internal/session"
)

// channelShim adapts the concrete WhatsApp client to the services.Channel
// interface. It keeps the services package decoupled from the Graph API
// types while reusing the client as-is.
type channelShim struct {
	wa *whatsapp.Client
}

// SendText proxies Client.SendText.
func (s channelShim) SendText(ctx context.Context, to, body string) (string, error) {
	return s.wa.SendText(ctx, to, body)
}

// SendButtons converts button values and proxies Client.SendButtons.
func (s channelShim) SendButtons(ctx context.Context, to, body string, buttons []services.Button) (string, error) {
	out := make([]whatsapp.Button, 0, len(buttons))
	for _, b := range buttons {
		out = append(out, whatsapp.Button{ID: b.ID, Title: b.Title})
	}
	return s.wa.SendButtons(ctx, to, body, out)
}

// SendLanguageMenu proxies Client.SendLanguageMenu.
func (s channelShim) SendLanguageMenu(ctx context.Context, to string) (string, error) {
	return s.wa.SendLanguageMenu(ctx, to)
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine: observability (tracing, metrics), the Meta webhook pair, and the
// basic-auth admin API with CORS, gzip, security headers, and rate limiting.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: request-scoped structured logging
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
func RegisterRoutes(r *gin.Engine, db *gorm.DB, wa *whatsapp.Client, gen llm.Client, sessions *session.Tracker, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Request-scoped structured logging
	r.Use(middleware.Logger())

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Dependency injection: orchestrator ← services ← repo/db
	orch := &services.Orchestrator{
		DB:                db,
		Sessions:          sessions,
		Generator:         gen,
		Channel:           channelShim{wa: wa},
		Dispatcher:        &services.Dispatcher{Orders: &services.OrderService{DB: db}},
		Classifier:        services.NewKeywordClassifier(),
		MaxAddressChanges: cfg.MaxAddressChanges,
		HistoryLimit:      cfg.HistoryLimit,
		GenerationTimeout: cfg.Generation.Timeout,
	}

	// Meta webhook: GET is the subscription handshake, POST carries events.
	// POST bodies are HMAC-verified before any parsing happens.
	wh := handlers.NewWebhook(orch, cfg.WhatsApp.VerifyToken)
	r.GET("/webhook", wh.Verify)
	r.POST("/webhook", middleware.VerifySignature(cfg.WhatsApp.AppSecret), wh.Receive)

	// Admin API for the shopkeeper dashboard.
	adm := handlers.NewAdmin(db, sessions, wa)
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByClientIP())

	admin := r.Group("/admin")
	admin.Use(rl.Handler())
	admin.Use(adminCORS(cfg.CORS.AllowedOrigins))
	admin.Use(gzip.Gzip(gzip.DefaultCompression))
	admin.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS: cfg.Security.EnableHSTS,
		HSTSMaxAge: cfg.Security.HSTSMaxAge,
		NoStore:    true,
	}))
	admin.Use(gin.BasicAuth(gin.Accounts{cfg.Admin.Username: cfg.Admin.Password}))
	{
		admin.GET("/inventory", adm.ListInventory)
		admin.POST("/inventory", adm.AddInventory)
		admin.PUT("/inventory/price", adm.UpdatePrice)
		admin.PUT("/inventory/:id", adm.UpdateInventory)

		admin.GET("/orders", adm.ListOrders)
		admin.PUT("/orders/:id/status", adm.UpdateOrderStatus)
	}
}

// adminCORS builds the CORS posture for the dashboard. With no configured
// origins it allows all (credentials off); otherwise only the allowlist.
func adminCORS(origins []string) gin.HandlerFunc {
	conf := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		conf.AllowAllOrigins = true
	} else {
		conf.AllowOrigins = origins
	}
	return cors.New(conf)
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
