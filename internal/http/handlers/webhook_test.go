package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/maachbazar/maachbazar-bot/internal/services"
)

// fakeConv records received events.
type fakeConv struct {
	events []services.InboundEvent
	err    error
}

func (f *fakeConv) HandleEvent(ctx context.Context, ev services.InboundEvent) error {
	f.events = append(f.events, ev)
	return f.err
}

func webhookRouter(conv *fakeConv) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	wh := NewWebhook(conv, "verify-secret")
	r.GET("/webhook", wh.Verify)
	r.POST("/webhook", wh.Receive)
	return r
}

func TestVerify(t *testing.T) {
	r := webhookRouter(&fakeConv{})

	q := url.Values{}
	q.Set("hub.mode", "subscribe")
	q.Set("hub.verify_token", "verify-secret")
	q.Set("hub.challenge", "challenge-42")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/webhook?"+q.Encode(), nil))
	if w.Code != http.StatusOK || w.Body.String() != "challenge-42" {
		t.Fatalf("status %d body %q; want 200 with echoed challenge", w.Code, w.Body.String())
	}

	q.Set("hub.verify_token", "wrong")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/webhook?"+q.Encode(), nil))
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d; want 403 on bad token", w.Code)
	}

	q.Set("hub.verify_token", "verify-secret")
	q.Set("hub.mode", "unsubscribe")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/webhook?"+q.Encode(), nil))
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d; want 403 on bad mode", w.Code)
	}
}

const inboundText = `{
  "entry": [{"changes": [{"value": {"messages": [
    {"from": "880171", "id": "wamid.1", "type": "text", "text": {"body": "hello"}}
  ]}}]}]
}`

const inboundMixed = `{
  "entry": [{"changes": [{"value": {"messages": [
    {"from": "880171", "id": "wamid.1", "type": "image"},
    {"from": "880171", "id": "wamid.2", "type": "interactive",
     "context": {"id": "wamid.quote"},
     "interactive": {"type": "button_reply", "button_reply": {"id": "confirm_order", "title": "Confirm"}}}
  ], "statuses": [
    {"id": "wamid.out", "status": "read", "recipient_id": "880171"}
  ]}}]}]
}`

func TestReceive_DispatchesEvents(t *testing.T) {
	conv := &fakeConv{}
	r := webhookRouter(conv)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(inboundMixed))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "received") {
		t.Fatalf("body = %s", w.Body.String())
	}
	// The image is skipped; only the button reply reaches the orchestrator.
	if len(conv.events) != 1 {
		t.Fatalf("events = %+v; want 1", conv.events)
	}
	ev := conv.events[0]
	if ev.Kind != services.EventButtonReply || ev.ButtonID != "confirm_order" || ev.ReplyContextID != "wamid.quote" {
		t.Fatalf("event = %+v", ev)
	}
}

func TestReceive_AcksDespiteHandlerFailure(t *testing.T) {
	conv := &fakeConv{err: errors.New("orchestrator down")}
	r := webhookRouter(conv)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(inboundText)))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; handler failures must not surface to Meta", w.Code)
	}
	if len(conv.events) != 1 || conv.events[0].Text != "hello" {
		t.Fatalf("events = %+v", conv.events)
	}
}

func TestReceive_RejectsMalformedPayload(t *testing.T) {
	conv := &fakeConv{}
	r := webhookRouter(conv)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"entry":`)))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d; want 400", w.Code)
	}
	if len(conv.events) != 0 {
		t.Fatalf("events dispatched from bad payload: %+v", conv.events)
	}
}
