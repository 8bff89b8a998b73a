package observers

import (
	"context"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/prompt"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"

	logx "github.com/rhea-assistant/server/pkg/logger"
)

// newPromptHandler builds a typed PromptCallbackHandler logging rendered prompts.
func newPromptHandler() *callbackHelper.PromptCallbackHandler {
	return &callbackHelper.PromptCallbackHandler{
		OnEnd: func(ctx context.Context, info *einocb.RunInfo, output *prompt.CallbackOutput) context.Context {
			if output != nil && len(output.Result) > 0 && output.Result[0] != nil {
				logx.Debug().Str("component", info.Type).Str("rendered", output.Result[0].Content).Msg("prompt rendered")
			}
			return ctx
		},
		OnError: func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			logx.Error().Str("component", info.Type).Err(err).Msg("prompt render failed")
			return ctx
		},
	}
}
