package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/rhea-assistant/server/internal/agent/graph/conversations"
	"github.com/rhea-assistant/server/internal/agent/graph/prompts"
	"github.com/rhea-assistant/server/internal/agent/model"
	logx "github.com/rhea-assistant/server/pkg/logger"
)

// Node keys of the turn graph.
const (
	NodeRetrieve           = "retrieve"
	NodeGenerate           = "generate"
	NodeToolExecutor       = "tool_executor"
	NodeGenerateAfterTools = "generate_after_tools"
	NodeFinalize           = "finalize"
)

// NewRetrieveNode loads the thread's checkpoint, records the current
// question and fills the context field from the memory gateway. Memory
// failure is not fatal: the turn proceeds with empty context.
func NewRetrieveNode(
	mgr *conversations.Manager,
	memory model.MemoryGateway,
	topK int,
) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.QueryInput) (model.QueryInput, error) {
		state, err := mgr.LoadOrInit(ctx, in.ThreadID)
		if err != nil {
			return in, fmt.Errorf("load checkpoint for thread %s: %w", in.ThreadID, err)
		}
		state.SetQuestion(in.Query)

		passages, err := memory.Retrieve(ctx, in.Query, topK)
		if err != nil {
			logx.Warn().Err(err).Str("thread_id", in.ThreadID).
				Msg("memory retrieval failed; continuing with empty context")
			passages = nil
		}
		state.SetContext(strings.Join(passages, "\n"))

		err = compose.ProcessState(ctx, func(_ context.Context, s *model.TurnState) error {
			s.ThreadID = in.ThreadID
			s.Conversation = state
			return nil
		})
		if err != nil {
			return in, fmt.Errorf("seed turn state: %w", err)
		}

		logx.Debug().Str("thread_id", in.ThreadID).Int("passages", len(passages)).
			Int("history", len(state.History)).Msg("retrieve complete")
		return in, nil
	})
}

// NewGenerateNode invokes the chat model with the current tool catalog
// attached. The catalog is re-fetched from the gateway on every invocation;
// a discovery failure degrades to the zero-tool operating mode. Model
// failure is fatal for the turn.
func NewGenerateNode(
	chatModel einomodel.ToolCallingChatModel,
	tools model.ToolGateway,
	promptCfg model.PromptConfig,
) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.QueryInput) (*schema.Message, error) {
		infos, err := tools.ListTools(ctx)
		if err != nil {
			logx.Warn().Err(err).Msg("tool discovery failed; generating without tools")
			infos = nil
		}

		var question, contextText string
		var history []*schema.Message
		err = compose.ProcessState(ctx, func(_ context.Context, s *model.TurnState) error {
			question = s.Conversation.Question
			contextText = s.Conversation.Context
			history = s.Conversation.History
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("read turn state: %w", err)
		}

		systemPrompt, err := prompts.RenderSystem(ctx, promptCfg, contextText, infos)
		if err != nil {
			return nil, fmt.Errorf("render system prompt: %w", err)
		}
		messages := conversations.BuildInitialMessages(systemPrompt, history, question)

		cm := chatModel
		if len(infos) > 0 {
			cm, err = chatModel.WithTools(infos)
			if err != nil {
				return nil, fmt.Errorf("bind tools to chat model: %w", err)
			}
		}

		out, err := cm.Generate(ctx, messages)
		if err != nil {
			return nil, fmt.Errorf("generate: %w", err)
		}
		return out, nil
	})
}

// NewGeneratePostHandler records usage cost, normalizes tool-call ids and
// merges the answer into state: user question and answer are appended to
// history, the answer field is replaced.
func NewGeneratePostHandler(modelName string) func(context.Context, *schema.Message, *model.TurnState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, state *model.TurnState) (*schema.Message, error) {
		accountUsage(state, NodeGenerate, modelName, out)
		ensureToolCallIDs(state, out)

		state.Conversation.AppendHistory(schema.UserMessage(state.Conversation.Question), out)
		state.Conversation.SetAnswer(out)

		if model.HasToolCalls(out) {
			logx.Debug().Int("tool_count", len(out.ToolCalls)).Msg("model requested tools")
		} else {
			logx.Debug().Msg("model answered directly")
		}
		return out, nil
	}
}

// NewToolRouteCondition routes to the tool executor when the answer carries
// tool calls, otherwise straight to finalize.
func NewToolRouteCondition() func(context.Context, *schema.Message) (string, error) {
	return func(ctx context.Context, input *schema.Message) (string, error) {
		if model.HasToolCalls(input) {
			return NodeToolExecutor, nil
		}
		return NodeFinalize, nil
	}
}

// NewToolExecutorNode executes every requested tool call through the
// gateway. Calls run concurrently; results come back in call order.
func NewToolExecutorNode(tools model.ToolGateway) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in *schema.Message) ([]*schema.Message, error) {
		return ExecuteToolCalls(ctx, tools, in.ToolCalls), nil
	})
}

// NewToolExecutorPostHandler appends the tool results to history.
func NewToolExecutorPostHandler() func(context.Context, []*schema.Message, *model.TurnState) ([]*schema.Message, error) {
	return func(ctx context.Context, out []*schema.Message, state *model.TurnState) ([]*schema.Message, error) {
		state.Conversation.AppendHistory(out...)
		return out, nil
	}
}

// NewGenerateAfterToolsNode re-invokes the chat model over the history that
// now includes the tool results, with no tool catalog bound, to produce the
// final natural-language answer. No further tool round is permitted.
func NewGenerateAfterToolsNode(
	chatModel einomodel.ToolCallingChatModel,
	promptCfg model.PromptConfig,
) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in []*schema.Message) (*schema.Message, error) {
		var contextText string
		var history []*schema.Message
		err := compose.ProcessState(ctx, func(_ context.Context, s *model.TurnState) error {
			contextText = s.Conversation.Context
			history = s.Conversation.History
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("read turn state: %w", err)
		}

		systemPrompt, err := prompts.RenderSystem(ctx, promptCfg, contextText, nil)
		if err != nil {
			return nil, fmt.Errorf("render system prompt: %w", err)
		}
		messages := conversations.BuildFollowUpMessages(systemPrompt, history)

		out, err := chatModel.Generate(ctx, messages)
		if err != nil {
			return nil, fmt.Errorf("generate after tools: %w", err)
		}
		return out, nil
	})
}

// NewGenerateAfterToolsPostHandler records usage cost and merges the final
// answer into state.
func NewGenerateAfterToolsPostHandler(modelName string) func(context.Context, *schema.Message, *model.TurnState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, state *model.TurnState) (*schema.Message, error) {
		accountUsage(state, NodeGenerateAfterTools, modelName, out)

		state.Conversation.AppendHistory(out)
		state.Conversation.SetAnswer(out)
		return out, nil
	}
}

// NewFinalizeNode persists the checkpoint. Checkpoint failure is fatal: the
// response must not be delivered without a durable save.
func NewFinalizeNode(mgr *conversations.Manager) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in *schema.Message) (*schema.Message, error) {
		var threadID string
		var state *model.ConversationState
		var costUSD float64
		err := compose.ProcessState(ctx, func(_ context.Context, s *model.TurnState) error {
			threadID = s.ThreadID
			state = s.Conversation
			costUSD = s.TotalCostUSD
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("read turn state: %w", err)
		}

		if err := mgr.Save(ctx, threadID, state); err != nil {
			return nil, fmt.Errorf("save checkpoint for thread %s: %w", threadID, err)
		}

		logx.Debug().Str("thread_id", threadID).Int("history", len(state.History)).
			Float64("turn_cost_usd", costUSD).Msg("turn checkpointed")
		return in, nil
	})
}
