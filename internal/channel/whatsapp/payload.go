package whatsapp

import "encoding/json"

// Webhook payload shapes for the Cloud API. Only the fields the bot consumes
// are modeled; everything else in the payload is ignored on decode.

// WebhookPayload is the top-level envelope posted to the webhook.
type WebhookPayload struct {
	Entry []Entry `json:"entry"`
}

// Entry is one account-level notification batch.
type Entry struct {
	Changes []Change `json:"changes"`
}

// Change carries one value object.
type Change struct {
	Value Value `json:"value"`
}

// Value holds either inbound messages or delivery status updates.
type Value struct {
	Messages []InboundMessage `json:"messages"`
	Statuses []Status         `json:"statuses"`
}

// Status is a delivery receipt for an earlier outbound message.
type Status struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	RecipientID string `json:"recipient_id"`
}

// InboundMessage is one message from a user.
type InboundMessage struct {
	From        string       `json:"from"`
	ID          string       `json:"id"`
	Type        string       `json:"type"`
	Text        *TextBody    `json:"text,omitempty"`
	Interactive *Interactive `json:"interactive,omitempty"`
	Context     *MsgContext  `json:"context,omitempty"`
}

// TextBody is the body of a text message.
type TextBody struct {
	Body string `json:"body"`
}

// Interactive is a list or button reply.
type Interactive struct {
	Type        string `json:"type"`
	ListReply   *Reply `json:"list_reply,omitempty"`
	ButtonReply *Reply `json:"button_reply,omitempty"`
}

// Reply is the selected row or button.
type Reply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// MsgContext identifies the message this one replies to.
type MsgContext struct {
	ID string `json:"id"`
}

// ParsePayload decodes a raw webhook body.
func ParsePayload(raw []byte) (*WebhookPayload, error) {
	var p WebhookPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Messages flattens all inbound messages across entries and changes.
func (p *WebhookPayload) Messages() []InboundMessage {
	var out []InboundMessage
	for _, e := range p.Entry {
		for _, ch := range e.Changes {
			out = append(out, ch.Value.Messages...)
		}
	}
	return out
}

// DeliveryStatuses flattens all status updates across entries and changes.
func (p *WebhookPayload) DeliveryStatuses() []Status {
	var out []Status
	for _, e := range p.Entry {
		for _, ch := range e.Changes {
			out = append(out, ch.Value.Statuses...)
		}
	}
	return out
}
