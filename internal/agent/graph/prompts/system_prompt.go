package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/rhea-assistant/server/internal/agent/model"
)

//go:embed template/system_prompt.txt
var systemPromptTemplate string

// RenderSystem renders the system prompt for a model call and triggers
// prompt callbacks. Retrieved context and tool descriptions are injected via
// token replacement rather than template evaluation so user-derived text can
// never be interpreted as template syntax.
func RenderSystem(ctx context.Context, cfg model.PromptConfig, contextText string, toolInfos []*schema.ToolInfo) (string, error) {
	contextSection := strings.TrimSpace(contextText)
	if contextSection == "" {
		contextSection = "(none)"
	}

	toolSection := ""
	if cfg.IncludeToolCatalog && len(toolInfos) > 0 {
		var b strings.Builder
		b.WriteString("Available tools:\n")
		for _, info := range toolInfos {
			if info == nil {
				continue
			}
			b.WriteString("- " + info.Name + ": " + info.Desc + "\n")
		}
		b.WriteString("\n")
		toolSection = b.String()
	}

	content := strings.NewReplacer(
		"{assistant_name}", cfg.AssistantName,
		"{tool_section}", toolSection,
		"{context_section}", contextSection,
	).Replace(systemPromptTemplate)

	// Wrap via Eino prompt component using a messages placeholder to emit callbacks
	tpl := prompt.FromMessages(
		schema.FString,
		schema.MessagesPlaceholder("system_messages", false),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"system_messages": []*schema.Message{schema.SystemMessage(content)},
	})
	if err != nil {
		return "", fmt.Errorf("system prompt callbacks: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("system prompt callbacks: empty result")
	}
	return msgs[0].Content, nil
}
