// Package whatsapp is the channel adapter for the WhatsApp Cloud API. It
// renders outbound messages (text, interactive buttons, list menus, and
// pre-approved templates) and decodes inbound webhook payloads. No business
// logic lives here: callers decide what to send and when.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/maachbazar/maachbazar-bot/internal/config"
)

// Button is one interactive reply button (max 3 per message on WhatsApp).
type Button struct {
	ID    string
	Title string
}

// TemplateComponent parameterizes a pre-approved template body.
type TemplateComponent struct {
	Type       string              `json:"type"`
	Parameters []TemplateParameter `json:"parameters"`
}

// TemplateParameter is one body variable of a template.
type TemplateParameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// BodyTextComponent builds the standard single body component with text
// parameters, in order.
func BodyTextComponent(values ...string) []TemplateComponent {
	params := make([]TemplateParameter, 0, len(values))
	for _, v := range values {
		params = append(params, TemplateParameter{Type: "text", Text: v})
	}
	return []TemplateComponent{{Type: "body", Parameters: params}}
}

// Client talks to the Graph API messages endpoint for one phone number id.
type Client struct {
	http          *http.Client
	baseURL       string
	token         string
	phoneNumberID string
}

// NewClient builds a client from the WhatsApp configuration. All calls are
// bounded by the configured send timeout.
func NewClient(cfg config.WhatsAppConfig) *Client {
	return &Client{
		http:          &http.Client{Timeout: cfg.SendTimeout},
		baseURL:       cfg.GraphBaseURL,
		token:         cfg.Token,
		phoneNumberID: cfg.PhoneNumberID,
	}
}

// sendResponse is the slice of the Graph API response we care about.
type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// post sends one messages-endpoint payload and returns the wamid.
func (c *Client) post(ctx context.Context, payload map[string]any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Error().Int("status", resp.StatusCode).Bytes("body", raw).Msg("whatsapp send rejected")
		return "", fmt.Errorf("whatsapp send: status %d", resp.StatusCode)
	}

	var out sendResponse
	if err := json.Unmarshal(raw, &out); err != nil || len(out.Messages) == 0 {
		// Delivered but no id to log against; not worth failing the send.
		return "", nil
	}
	return out.Messages[0].ID, nil
}

// SendText delivers a free-form text message and returns its wamid.
func (c *Client) SendText(ctx context.Context, to, body string) (string, error) {
	return c.post(ctx, map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text":              map[string]any{"body": body},
	})
}

// SendButtons delivers an interactive button message.
func (c *Client) SendButtons(ctx context.Context, to, body string, buttons []Button) (string, error) {
	btns := make([]map[string]any, 0, len(buttons))
	for _, b := range buttons {
		btns = append(btns, map[string]any{
			"type":  "reply",
			"reply": map[string]any{"id": b.ID, "title": b.Title},
		})
	}
	return c.post(ctx, map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "interactive",
		"interactive": map[string]any{
			"type":   "button",
			"body":   map[string]any{"text": body},
			"action": map[string]any{"buttons": btns},
		},
	})
}

// SendLanguageMenu delivers the welcome list menu for language selection.
func (c *Client) SendLanguageMenu(ctx context.Context, to string) (string, error) {
	return c.post(ctx, map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "interactive",
		"interactive": map[string]any{
			"type":   "list",
			"header": map[string]any{"type": "text", "text": "Welcome to Maachbazar! 🐟"},
			"body":   map[string]any{"text": "Please select your preferred language / Apni kon bhasha pochondo koren?"},
			"footer": map[string]any{"text": "Maachbazar Bot"},
			"action": map[string]any{
				"button": "Select Language",
				"sections": []map[string]any{
					{
						"title": "Languages",
						"rows": []map[string]any{
							{"id": "lang_en", "title": "English", "description": "English"},
							{"id": "lang_bn", "title": "Bangla", "description": "বাংলা"},
							{"id": "lang_hi", "title": "Hinglish", "description": "Hindi + English"},
						},
					},
				},
			},
		},
	})
}

// SendTemplate delivers a pre-approved template message. Used outside the
// 24-hour session window, where free-form sends are not permitted.
func (c *Client) SendTemplate(ctx context.Context, to, name, languageCode string, components []TemplateComponent) (string, error) {
	tpl := map[string]any{
		"name":     name,
		"language": map[string]any{"code": languageCode},
	}
	if len(components) > 0 {
		tpl["components"] = components
	}
	return c.post(ctx, map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "template",
		"template":          tpl,
	})
}
