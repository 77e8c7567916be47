package services

import "strings"

// ConfirmationClassifier decides whether an assistant reply is a yes/no
// order-confirmation question. The generation collaborator gives no
// structured signal for this, so detection is a best-effort text sniff; it
// is kept behind this interface so it can be replaced (for example by an
// explicit flag from the model) without touching the state machine. A miss
// degrades gracefully to a plain-text send.
type ConfirmationClassifier interface {
	IsConfirmationQuestion(text string) bool
}

// KeywordClassifier flags replies containing a question mark together with
// any confirmation keyword.
type KeywordClassifier struct {
	Keywords []string
}

// NewKeywordClassifier returns the default classifier.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{
		Keywords: []string{"confirm", "shall i place", "place the order", "order koro", "order korbo"},
	}
}

// IsConfirmationQuestion implements ConfirmationClassifier.
func (c *KeywordClassifier) IsConfirmationQuestion(text string) bool {
	if !strings.Contains(text, "?") {
		return false
	}
	low := strings.ToLower(text)
	for _, kw := range c.Keywords {
		if strings.Contains(low, kw) {
			return true
		}
	}
	return false
}
