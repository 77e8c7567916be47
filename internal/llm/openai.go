package llm

import (
	"context"
	"errors"

	"github.com/sashabaranov/go-openai"
)

// OpenAIClient implements Client against any OpenAI-compatible chat
// completion endpoint.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAI builds a client. baseURL may be empty for the default endpoint
// or point at an OpenAI-compatible proxy.
func NewOpenAI(apiKey, baseURL, model string) *OpenAIClient {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

// placeOrderTool is the function schema offered to the model. The model
// fills quantities in kilograms and the price it quoted from the price list.
var placeOrderTool = openai.Tool{
	Type: openai.ToolTypeFunction,
	Function: &openai.FunctionDefinition{
		Name:        PlaceOrderTool,
		Description: "Places an order for fish. Use this only when the user explicitly confirms they want to buy.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"items": map[string]any{
					"type":        "array",
					"description": "List of items to order",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"fish_name":    map[string]any{"type": "string", "description": "Name of the fish (e.g., Rohu, Katla)"},
							"quantity":     map[string]any{"type": "number", "description": "Quantity in kg"},
							"price_per_kg": map[string]any{"type": "integer", "description": "Price per kg at the time of order"},
						},
						"required": []string{"fish_name", "quantity", "price_per_kg"},
					},
				},
				"address": map[string]any{
					"type":        "string",
					"description": "Delivery address, only if the user provided one in this conversation",
				},
			},
			"required": []string{"items"},
		},
	},
}

// Generate runs one chat completion with the place_order tool attached.
func (c *OpenAIClient) Generate(ctx context.Context, req Request) (Reply, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.History)+2)
	if req.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, m := range req.History {
		role := openai.ChatMessageRoleUser
		if m.Role == RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: msgs,
		Tools:    []openai.Tool{placeOrderTool},
	})
	if err != nil {
		return Reply{}, err
	}
	if len(resp.Choices) == 0 {
		return Reply{}, errors.New("no completion choices returned")
	}

	choice := resp.Choices[0].Message
	for _, tc := range choice.ToolCalls {
		if tc.Function.Name == PlaceOrderTool {
			return Reply{ToolCall: &ToolCall{
				Name:      tc.Function.Name,
				Arguments: []byte(tc.Function.Arguments),
			}}, nil
		}
	}
	return Reply{Text: choice.Content}, nil
}
