// WhatsApp webhook HTTP handlers.
//
// This file exposes the Meta Graph webhook endpoints:
//   - GET  /webhook  (subscription verification handshake)
//   - POST /webhook  (inbound messages and delivery statuses)
//
// Handlers are transport-thin: they translate webhook payloads into inbound
// events and hand them to the conversation orchestrator. The POST handler
// always acknowledges with 200 once the payload parses, so Meta does not
// retry deliveries that failed downstream.
package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/maachbazar/maachbazar-bot/internal/channel/whatsapp"
	"github.com/maachbazar/maachbazar-bot/internal/http/middleware"
	"github.com/maachbazar/maachbazar-bot/internal/services"
)

// ConversationHandler processes one inbound event end to end.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type ConversationHandler interface {
	HandleEvent(ctx context.Context, ev services.InboundEvent) error
}

// WebhookHandlers groups the Meta webhook endpoints.
type WebhookHandlers struct {
	conv        ConversationHandler
	verifyToken string
}

// NewWebhook constructs WebhookHandlers bound to the given orchestrator and
// the verify token configured in the Meta app dashboard.
func NewWebhook(conv ConversationHandler, verifyToken string) *WebhookHandlers {
	return &WebhookHandlers{conv: conv, verifyToken: verifyToken}
}

// Verify handles the GET subscription handshake. Meta calls it once when the
// webhook URL is registered; the challenge must be echoed back verbatim.
func (h *WebhookHandlers) Verify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token == h.verifyToken {
		c.String(http.StatusOK, challenge)
		return
	}
	fail(c, http.StatusForbidden, ErrCodeForbidden, "verification failed")
}

// Receive handles POST webhook deliveries. Each inbound message becomes an
// InboundEvent for the orchestrator; delivery statuses are logged only.
func (h *WebhookHandlers) Receive(c *gin.Context) {
	lg := middleware.LoggerFrom(c)

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable body")
		return
	}

	payload, err := whatsapp.ParsePayload(body)
	if err != nil {
		lg.Warn().Err(err).Msg("webhook payload parse failed")
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid payload")
		return
	}

	for _, st := range payload.DeliveryStatuses() {
		middleware.CountWebhookEvent("status")
		lg.Debug().
			Str("wamid", st.ID).
			Str("status", st.Status).
			Str("recipient", st.RecipientID).
			Msg("delivery status")
	}

	for _, msg := range payload.Messages() {
		ev, ok := toEvent(msg)
		if !ok {
			lg.Debug().Str("type", msg.Type).Msg("ignoring unsupported message type")
			continue
		}
		middleware.CountWebhookEvent(ev.Kind)
		if err := h.conv.HandleEvent(c.Request.Context(), ev); err != nil {
			// Acknowledge anyway; the orchestrator already apologized to the
			// user and Meta retries would only replay the failure.
			lg.Error().Err(err).Str("user", ev.UserID).Msg("event handling failed")
		}
	}

	ok(c, http.StatusOK, gin.H{"status": "received"})
}

// toEvent maps a raw webhook message onto an orchestrator event. It returns
// ok=false for message types the bot does not handle (media, reactions, ...).
func toEvent(msg whatsapp.InboundMessage) (services.InboundEvent, bool) {
	ev := services.InboundEvent{UserID: msg.From}
	if msg.Context != nil {
		ev.ReplyContextID = msg.Context.ID
	}

	switch {
	case msg.Type == "text" && msg.Text != nil:
		ev.Kind = services.EventText
		ev.Text = msg.Text.Body
		return ev, true
	case msg.Type == "interactive" && msg.Interactive != nil && msg.Interactive.ButtonReply != nil:
		ev.Kind = services.EventButtonReply
		ev.ButtonID = msg.Interactive.ButtonReply.ID
		return ev, true
	case msg.Type == "interactive" && msg.Interactive != nil && msg.Interactive.ListReply != nil:
		ev.Kind = services.EventListReply
		ev.ListReplyID = msg.Interactive.ListReply.ID
		return ev, true
	}
	return services.InboundEvent{}, false
}
