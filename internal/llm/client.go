// Package llm wraps the text-generation collaborator. The rest of the
// application depends only on the Client interface and the small value types
// here; the OpenAI-backed implementation lives in openai.go.
package llm

import "context"

// Roles of conversation turns passed to the model.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// PlaceOrderTool is the name of the single structured action the model may
// invoke instead of replying with text.
const PlaceOrderTool = "place_order"

// Message is one prior conversation turn.
type Message struct {
	Role    string
	Content string
}

// Request is a single generation call: a system instruction, the recent
// history oldest-first, and the new user prompt.
type Request struct {
	System  string
	History []Message
	Prompt  string
}

// ToolCall is a structured action request emitted by the model. Arguments is
// the raw JSON argument payload and must be treated as untrusted input by
// the caller.
type ToolCall struct {
	Name      string
	Arguments []byte
}

// Reply is the model's answer: free text, or a tool call, never both.
type Reply struct {
	Text     string
	ToolCall *ToolCall
}

// Client generates a reply for a conversation turn.
type Client interface {
	Generate(ctx context.Context, req Request) (Reply, error)
}
