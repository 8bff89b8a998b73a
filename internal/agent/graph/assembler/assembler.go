package assembler

import (
	"strings"

	"github.com/cloudwego/eino/schema"
)

// EmptyAnswerApology is delivered when the model produced no usable text.
// The engine never hands an empty message to the transport layer.
const EmptyAnswerApology = "I'm sorry, I couldn't come up with a response. Please try rephrasing your message."

// FatalErrorApology is delivered when a turn fails outright.
const FatalErrorApology = "I apologize, but I encountered an error while processing your request. Please try again."

// AssembleText flattens a model answer into plain text for delivery. Plain
// string content wins when present; otherwise the textual parts of
// MultiContent are concatenated and non-textual parts are discarded. An
// empty or all-whitespace result is replaced with EmptyAnswerApology.
func AssembleText(m *schema.Message) string {
	text := Flatten(m)
	if strings.TrimSpace(text) == "" {
		return EmptyAnswerApology
	}
	return text
}

// Flatten extracts the raw textual content of a message without the apology
// substitution.
func Flatten(m *schema.Message) string {
	if m == nil {
		return ""
	}
	if m.Content != "" {
		return m.Content
	}

	var b strings.Builder
	for _, part := range m.MultiContent {
		if part.Type != schema.ChatMessagePartTypeText {
			continue
		}
		b.WriteString(part.Text)
	}
	return b.String()
}
