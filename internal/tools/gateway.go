package tools

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/rhea-assistant/server/internal/agent/model"
	logx "github.com/rhea-assistant/server/pkg/logger"
)

// Gateway implements model.ToolGateway over a registry of eino tools keyed
// by name. Backends can be registered and deregistered at runtime; names are
// resolved at call time, never bound at compile time, so a catalog listed
// for one model call may legitimately differ from the catalog in force when
// the resulting tool calls execute.
type Gateway struct {
	mu            sync.RWMutex
	tools         map[string]tool.InvokableTool
	order         []string
	invokeTimeout time.Duration
}

func NewGateway(invokeTimeout time.Duration) *Gateway {
	return &Gateway{
		tools:         make(map[string]tool.InvokableTool),
		invokeTimeout: invokeTimeout,
	}
}

// Register adds a tool to the catalog, replacing any previous tool with the
// same name.
func (g *Gateway) Register(ctx context.Context, t tool.InvokableTool) error {
	info, err := t.Info(ctx)
	if err != nil {
		return fmt.Errorf("register tool: %w", err)
	}
	if info == nil || info.Name == "" {
		return fmt.Errorf("register tool: missing tool name")
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.tools[info.Name]; !exists {
		g.order = append(g.order, info.Name)
	}
	g.tools[info.Name] = t
	logx.Debug().Str("tool", info.Name).Msg("registered tool")
	return nil
}

// Deregister removes a tool from the catalog. Unknown names are a no-op.
func (g *Gateway) Deregister(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.tools[name]; !exists {
		return
	}
	delete(g.tools, name)
	for i, n := range g.order {
		if n == name {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	logx.Debug().Str("tool", name).Msg("deregistered tool")
}

func (g *Gateway) ListTools(ctx context.Context) ([]*schema.ToolInfo, error) {
	g.mu.RLock()
	named := make([]tool.InvokableTool, 0, len(g.order))
	for _, name := range g.order {
		named = append(named, g.tools[name])
	}
	g.mu.RUnlock()

	infos := make([]*schema.ToolInfo, 0, len(named))
	for _, t := range named {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("list tools: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (g *Gateway) Invoke(ctx context.Context, name string, argumentsJSON string) (string, error) {
	g.mu.RLock()
	t, ok := g.tools[name]
	g.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", model.ErrToolNotFound, name)
	}

	if g.invokeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.invokeTimeout)
		defer cancel()
	}

	out, err := t.InvokableRun(ctx, argumentsJSON)
	if err != nil {
		return "", fmt.Errorf("invoke tool %s: %w", name, err)
	}
	return out, nil
}
