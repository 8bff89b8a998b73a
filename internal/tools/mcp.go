package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	logx "github.com/rhea-assistant/server/pkg/logger"
)

const mcpURLSuffix = "_MCP_URL"

// ServiceConfig describes one MCP-style HTTP tool backend.
type ServiceConfig struct {
	Name string
	URL  string
}

// DiscoverServices finds tool backends declared through environment
// variables of the form <PREFIX><NAME>_MCP_URL, e.g. RHEA_GMAIL_MCP_URL.
// Pass os.Environ() for environ.
func DiscoverServices(environ []string, prefix string) []ServiceConfig {
	var services []ServiceConfig
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || value == "" {
			continue
		}
		upper := strings.ToUpper(key)
		if !strings.HasPrefix(upper, strings.ToUpper(prefix)) || !strings.HasSuffix(upper, mcpURLSuffix) {
			continue
		}
		// A variable named exactly <prefix><suffix> has prefix and suffix
		// overlapping and carries no service name.
		if len(upper) < len(prefix)+len(mcpURLSuffix) {
			continue
		}
		name := strings.ToLower(upper[len(prefix) : len(upper)-len(mcpURLSuffix)])
		if name == "" {
			continue
		}
		services = append(services, ServiceConfig{Name: name, URL: value})
		logx.Info().Str("service", name).Msg("discovered MCP service")
	}
	return services
}

// ServiceCallInput is the argument shape every MCP service tool accepts.
type ServiceCallInput struct {
	Action string         `json:"action"`
	Params map[string]any `json:"params,omitempty"`
}

// NewServiceTool wraps one MCP service endpoint as a callable tool. The
// service receives {action, params} as JSON and answers with an opaque JSON
// document that is passed back to the model verbatim.
func NewServiceTool(cfg ServiceConfig, client *http.Client) tool.InvokableTool {
	if client == nil {
		client = http.DefaultClient
	}

	return utils.NewTool(
		&schema.ToolInfo{
			Name: "mcp_" + cfg.Name,
			Desc: fmt.Sprintf("Calls the %s service. Provide the 'action' to perform and its 'params'.", cfg.Name),
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"action": {
					Type:     "string",
					Desc:     "The action to perform on the service.",
					Required: true,
				},
				"params": {
					Type: "object",
					Desc: "The parameters for the action.",
				},
			}),
		},
		func(ctx context.Context, in *ServiceCallInput) (map[string]any, error) {
			if in.Action == "" {
				return nil, fmt.Errorf("action is required")
			}

			body, err := json.Marshal(map[string]any{
				"action": in.Action,
				"params": in.Params,
			})
			if err != nil {
				return nil, fmt.Errorf("marshal service request: %w", err)
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(body))
			if err != nil {
				return nil, fmt.Errorf("build service request: %w", err)
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Accept", "application/json")

			resp, err := client.Do(req)
			if err != nil {
				return nil, fmt.Errorf("call service %s: %w", cfg.Name, err)
			}
			defer resp.Body.Close()

			raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
			if err != nil {
				return nil, fmt.Errorf("read service %s response: %w", cfg.Name, err)
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				logx.Error().Int("status", resp.StatusCode).Str("service", cfg.Name).Msg("MCP service returned error status")
				return nil, fmt.Errorf("service %s returned status %d", cfg.Name, resp.StatusCode)
			}

			var out map[string]any
			if err := json.Unmarshal(raw, &out); err != nil {
				// Non-JSON bodies are still useful to the model.
				return map[string]any{"raw": string(raw)}, nil
			}
			return out, nil
		},
	)
}
