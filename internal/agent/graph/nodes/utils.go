package nodes

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/rhea-assistant/server/internal/agent/model"
	logx "github.com/rhea-assistant/server/pkg/logger"
)

// ===== Small helpers to keep handlers simple/readable =====

// ensureToolCallIDs synthesizes tool_call ids when the provider omits them,
// so results can always be correlated back to their call.
func ensureToolCallIDs(state *model.TurnState, out *schema.Message) {
	if out == nil {
		return
	}
	for i := range out.ToolCalls {
		if strings.TrimSpace(out.ToolCalls[i].ID) == "" {
			state.ToolCallIDSeq++
			out.ToolCalls[i].ID = fmt.Sprintf("call_%d", state.ToolCallIDSeq)
		}
	}
}

// accountUsage computes and logs USD usage cost for one model call and
// accumulates the running turn total into state.
func accountUsage(state *model.TurnState, node, modelName string, out *schema.Message) {
	if !model.CostEnabled() || out == nil || out.ResponseMeta == nil || out.ResponseMeta.Usage == nil {
		return
	}
	usage := out.ResponseMeta.Usage
	pricing := model.ResolvePricing(modelName)
	inC, outC, totalC := model.ComputeCost(usage, pricing)

	if out.Extra == nil {
		out.Extra = map[string]any{}
	}
	out.Extra["usage_cost"] = map[string]any{
		"currency":          "USD",
		"model":             modelName,
		"prompt_tokens":     usage.PromptTokens,
		"completion_tokens": usage.CompletionTokens,
		"total_tokens":      usage.TotalTokens,
		"input_cost":        inC,
		"output_cost":       outC,
		"total_cost":        totalC,
	}

	state.TotalCostUSD += totalC
	out.Extra["usage_cost_total_usd"] = state.TotalCostUSD

	logx.Debug().
		Str("node", node).
		Str("model", modelName).
		Int("prompt_tokens", usage.PromptTokens).
		Int("completion_tokens", usage.CompletionTokens).
		Int("total_tokens", usage.TotalTokens).
		Float64("total_cost_usd", totalC).
		Msg("LLM usage")
}
