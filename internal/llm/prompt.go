package llm

import (
	"fmt"
	"strings"

	"github.com/maachbazar/maachbazar-bot/internal/domain"
)

// SystemInstruction renders the fishmonger persona with the live price list
// and the user's context (preferred language, address on file).
func SystemInstruction(inventory []domain.InventoryItem, language string, address *string) string {
	var prices strings.Builder
	wrote := false
	for _, it := range inventory {
		if !it.IsAvailable {
			continue
		}
		fmt.Fprintf(&prices, "- %s: ₹%d/kg\n", it.Name, it.Price)
		wrote = true
	}
	if !wrote {
		prices.WriteString("- Rohu: ₹250/kg (Approx)\n- Katla: ₹300/kg (Approx)\n- Ilish: ₹1200/kg (Approx)\n")
	}

	var b strings.Builder
	b.WriteString(`You are a polite and friendly Bengali fishmonger at Maachbazar.
You speak a mix of English, Hindi, and Bengali (Hinglish).
You sell ONLY fresh fish available in our stock.
You DO NOT sell other items like chicken or mutton.

Your goal is to help customers check prices and place orders.
Here is the daily price list:
`)
	b.WriteString(prices.String())
	b.WriteString(`
If a customer asks for a price, use the list above.
If a fish is not in the list, say it is not available today.
Before placing an order, confirm the items and quantity with a short yes/no question.

Tone: Warm, respectful (use "Dada" or "Didi"), and professional.
Keep responses concise (under 50 words) for WhatsApp.
`)

	if language != "" {
		fmt.Fprintf(&b, "\nUser language preference: %s\n", language)
	}
	if address != nil && *address != "" {
		fmt.Fprintf(&b, "Delivery address on file: %s\n", *address)
	}
	return b.String()
}

// HistoryMessages converts logged conversation turns into generation turns.
func HistoryMessages(msgs []domain.Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		role := RoleUser
		if m.Role == domain.RoleAssistant {
			role = RoleAssistant
		}
		out = append(out, Message{Role: role, Content: m.Content})
	}
	return out
}
