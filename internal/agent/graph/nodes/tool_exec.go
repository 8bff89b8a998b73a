package nodes

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/rhea-assistant/server/internal/agent/model"
	logx "github.com/rhea-assistant/server/pkg/logger"
)

// ExecuteToolCalls runs all tool calls of one batch concurrently and returns
// one tool-result message per call, in the original call order regardless of
// completion order. Per-call failures (unknown tool, backend error, timeout)
// are converted into error-text results so one failing call never aborts the
// others.
//
// Tools are invoked through the gateway, not through a compile-time tools
// node, so callback events are emitted here for each call to keep the tool
// observers fed.
func ExecuteToolCalls(ctx context.Context, tools model.ToolGateway, calls []schema.ToolCall) []*schema.Message {
	results := make([]*schema.Message, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(idx int, tc schema.ToolCall) {
			defer wg.Done()

			runCtx := callbacks.ReuseHandlers(ctx, &callbacks.RunInfo{
				Name:      tc.Function.Name,
				Component: components.ComponentOfTool,
			})
			runCtx = callbacks.OnStart(runCtx, &tool.CallbackInput{
				ArgumentsInJSON: tc.Function.Arguments,
			})

			content, err := tools.Invoke(runCtx, tc.Function.Name, tc.Function.Arguments)
			if err != nil {
				callbacks.OnError(runCtx, err)
				logx.Warn().Err(err).Str("tool", tc.Function.Name).Str("call_id", tc.ID).
					Msg("tool call failed; recording error result")
				content = fmt.Sprintf("Error calling %s: %v", tc.Function.Name, err)
			} else {
				callbacks.OnEnd(runCtx, &tool.CallbackOutput{Response: content})
			}
			results[idx] = schema.ToolMessage(content, tc.ID)
		}(i, call)
	}
	wg.Wait()

	return results
}
