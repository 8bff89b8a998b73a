package graph

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/rhea-assistant/server/internal/agent/graph/conversations"
	"github.com/rhea-assistant/server/internal/agent/graph/nodes"
	"github.com/rhea-assistant/server/internal/agent/graph/observers"
	"github.com/rhea-assistant/server/internal/agent/model"
	logx "github.com/rhea-assistant/server/pkg/logger"
)

// maxRunSteps bounds a single turn. The graph has no cycles (a turn permits
// exactly one tool round), so this only guards against composition mistakes.
const maxRunSteps = 16

// Runner executes one turn of the workflow graph and returns the final
// answer message.
type Runner interface {
	Invoke(ctx context.Context, in model.QueryInput) (*schema.Message, error)
}

// Config holds everything needed to compose the turn graph end-to-end. The
// three gateways are injected here; the graph owns no global clients.
type Config struct {
	ChatModel   einomodel.ToolCallingChatModel
	ModelName   string
	Memory      model.MemoryGateway
	Tools       model.ToolGateway
	Checkpoints model.CheckpointRepository
	Prompt      model.PromptConfig
	MemoryTopK  int
}

// GraphBuilder handles the construction of the turn graph.
type GraphBuilder struct {
	config *Config
	mgr    *conversations.Manager
	graph  *compose.Graph[model.QueryInput, *schema.Message]
}

type graphRunner struct {
	runnable compose.Runnable[model.QueryInput, *schema.Message]
}

func (r *graphRunner) Invoke(ctx context.Context, in model.QueryInput) (*schema.Message, error) {
	return r.runnable.Invoke(ctx, in, compose.WithCallbacks(observers.NewAllCallbacks()))
}

// BuildTurnGraph validates the config, builds the graph and returns a Runner.
func BuildTurnGraph(ctx context.Context, cfg Config) (Runner, error) {
	if cfg.ChatModel == nil {
		return nil, fmt.Errorf("chat model is nil")
	}
	if cfg.Memory == nil {
		return nil, fmt.Errorf("memory gateway is nil")
	}
	if cfg.Tools == nil {
		return nil, fmt.Errorf("tool gateway is nil")
	}
	if cfg.Checkpoints == nil {
		return nil, fmt.Errorf("checkpoint repository is nil")
	}
	if cfg.MemoryTopK <= 0 {
		cfg.MemoryTopK = 2
	}

	builder := &GraphBuilder{
		config: &cfg,
		mgr:    conversations.NewManager(cfg.Checkpoints),
		graph: compose.NewGraph[model.QueryInput, *schema.Message](
			compose.WithGenLocalState(func(ctx context.Context) *model.TurnState {
				return &model.TurnState{Conversation: model.NewConversationState()}
			}),
		),
	}

	builder.addNodes()
	builder.addEdges()

	if err := builder.addBranches(); err != nil {
		return nil, err
	}

	runnable, err := builder.compile(ctx)
	if err != nil {
		return nil, err
	}

	logx.Debug().Msg("Turn graph built successfully")
	return &graphRunner{runnable: runnable}, nil
}

// addNodes adds all processing nodes to the graph.
func (b *GraphBuilder) addNodes() {
	b.graph.AddLambdaNode(nodes.NodeRetrieve,
		nodes.NewRetrieveNode(b.mgr, b.config.Memory, b.config.MemoryTopK),
	)

	b.graph.AddLambdaNode(nodes.NodeGenerate,
		nodes.NewGenerateNode(b.config.ChatModel, b.config.Tools, b.config.Prompt),
		compose.WithStatePostHandler(nodes.NewGeneratePostHandler(b.config.ModelName)),
	)

	b.graph.AddLambdaNode(nodes.NodeToolExecutor,
		nodes.NewToolExecutorNode(b.config.Tools),
		compose.WithStatePostHandler(nodes.NewToolExecutorPostHandler()),
	)

	b.graph.AddLambdaNode(nodes.NodeGenerateAfterTools,
		nodes.NewGenerateAfterToolsNode(b.config.ChatModel, b.config.Prompt),
		compose.WithStatePostHandler(nodes.NewGenerateAfterToolsPostHandler(b.config.ModelName)),
	)

	b.graph.AddLambdaNode(nodes.NodeFinalize,
		nodes.NewFinalizeNode(b.mgr),
	)
}

// addEdges creates the main flow connections between nodes.
func (b *GraphBuilder) addEdges() {
	edges := [][2]string{
		{compose.START, nodes.NodeRetrieve},
		{nodes.NodeRetrieve, nodes.NodeGenerate},
		{nodes.NodeToolExecutor, nodes.NodeGenerateAfterTools},
		{nodes.NodeGenerateAfterTools, nodes.NodeFinalize},
		{nodes.NodeFinalize, compose.END},
	}

	for _, edge := range edges {
		b.graph.AddEdge(edge[0], edge[1])
	}
}

// addBranches creates the conditional routing after generate: tool calls go
// through the executor, direct answers go straight to finalize.
func (b *GraphBuilder) addBranches() error {
	toolBranch := compose.NewGraphBranch(
		nodes.NewToolRouteCondition(),
		map[string]bool{
			nodes.NodeToolExecutor: true,
			nodes.NodeFinalize:     true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeGenerate, toolBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding tool routing branch")
		return fmt.Errorf("error adding tool routing branch: %w", err)
	}
	return nil
}

// compile finalizes and compiles the graph.
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.QueryInput, *schema.Message], error) {
	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(maxRunSteps))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}
	return runnable, nil
}
