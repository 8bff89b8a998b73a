package observers

import (
	"context"
	"strings"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"

	logx "github.com/rhea-assistant/server/pkg/logger"
)

// newModelHandler builds a typed ModelCallbackHandler to log message traffic around model calls.
func newModelHandler() *callbackHelper.ModelCallbackHandler {
	return &callbackHelper.ModelCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *model.CallbackInput) context.Context {
			evt := logx.Debug().Str("component", info.Type).Str("node", info.Name)
			if input != nil {
				evt = evt.Int("messages", len(input.Messages))
				if um := lastUserContent(input.Messages); um != "" {
					evt = evt.Str("user", um)
				}
			}
			evt.Msg("model call start")
			return ctx
		},
		OnEnd: func(ctx context.Context, info *einocb.RunInfo, output *model.CallbackOutput) context.Context {
			evt := logx.Debug().Str("component", info.Type).Str("node", info.Name)
			if output != nil && output.Message != nil {
				evt = evt.Int("tool_calls", len(output.Message.ToolCalls))
				if content := strings.TrimSpace(output.Message.Content); content != "" {
					evt = evt.Str("assistant", content)
				}
			}
			evt.Msg("model call end")
			return ctx
		},
		OnError: func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			logx.Error().Str("component", info.Type).Str("node", info.Name).Err(err).Msg("model call failed")
			return ctx
		},
	}
}

func lastUserContent(msgs []*schema.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m == nil {
			continue
		}
		if m.Role == schema.User {
			return strings.TrimSpace(m.Content)
		}
	}
	return ""
}
