package observers

import (
	"context"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/tool"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"

	logx "github.com/rhea-assistant/server/pkg/logger"
)

// newToolHandler builds a typed ToolCallbackHandler logging tool lifecycle events.
func newToolHandler() *callbackHelper.ToolCallbackHandler {
	return &callbackHelper.ToolCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *tool.CallbackInput) context.Context {
			evt := logx.Debug().Str("tool", info.Name)
			if input != nil {
				evt = evt.Str("arguments", input.ArgumentsInJSON)
			}
			evt.Msg("tool start")
			return ctx
		},
		OnEnd: func(ctx context.Context, info *einocb.RunInfo, output *tool.CallbackOutput) context.Context {
			evt := logx.Debug().Str("tool", info.Name)
			if output != nil {
				evt = evt.Str("response", output.Response)
			}
			evt.Msg("tool end")
			return ctx
		},
		OnError: func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			logx.Error().Str("tool", info.Name).Err(err).Msg("tool execution failed")
			return ctx
		},
	}
}
