package assembler

import (
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
)

func TestAssembleText_PlainContent(t *testing.T) {
	m := schema.AssistantMessage("Paris is the capital of France.", nil)
	assert.Equal(t, "Paris is the capital of France.", AssembleText(m))
}

func TestAssembleText_PlainContentWinsOverParts(t *testing.T) {
	m := &schema.Message{
		Role:    schema.Assistant,
		Content: "plain wins",
		MultiContent: []schema.ChatMessagePart{
			{Type: schema.ChatMessagePartTypeText, Text: "ignored"},
		},
	}
	assert.Equal(t, "plain wins", AssembleText(m))
}

func TestAssembleText_ConcatenatesTextParts(t *testing.T) {
	m := &schema.Message{
		Role: schema.Assistant,
		MultiContent: []schema.ChatMessagePart{
			{Type: schema.ChatMessagePartTypeText, Text: "Hello, "},
			{Type: schema.ChatMessagePartTypeImageURL, ImageURL: &schema.ChatMessageImageURL{URL: "https://example.com/x.png"}},
			{Type: schema.ChatMessagePartTypeText, Text: "world."},
		},
	}
	assert.Equal(t, "Hello, world.", AssembleText(m))
}

func TestAssembleText_EmptyGetsApology(t *testing.T) {
	cases := []*schema.Message{
		nil,
		{Role: schema.Assistant},
		{Role: schema.Assistant, Content: "   \n\t "},
		{Role: schema.Assistant, MultiContent: []schema.ChatMessagePart{
			{Type: schema.ChatMessagePartTypeImageURL, ImageURL: &schema.ChatMessageImageURL{URL: "https://example.com/x.png"}},
		}},
	}
	for _, m := range cases {
		assert.Equal(t, EmptyAnswerApology, AssembleText(m))
	}
}

func TestFlatten_NoApologySubstitution(t *testing.T) {
	assert.Equal(t, "", Flatten(&schema.Message{Role: schema.Assistant}))
	assert.Equal(t, "", Flatten(nil))
}
