package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	einomodel "github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"

	"github.com/rhea-assistant/server/internal/agent/model"
	logx "github.com/rhea-assistant/server/pkg/logger"
)

// NewGeminiClient creates the shared genai client used by the chat model and
// the embedding-backed memory gateway.
func NewGeminiClient(ctx context.Context, apiKey, baseURL string) (*genai.Client, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		clientCfg.HTTPOptions.BaseURL = baseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}
	return client, nil
}

// NewChatModel creates the tool-calling chat model used by both generation
// nodes. The tool catalog is attached per call via WithTools, never bound
// here, because the catalog can change between calls.
func NewChatModel(ctx context.Context, client *genai.Client, cfg model.ChatModelConfig) (einomodel.ToolCallingChatModel, error) {
	chatModel, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       cfg.Model,
		Temperature: &cfg.Temperature,
		MaxTokens:   &cfg.MaxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: true,
			ThinkingBudget:  genai.Ptr(int32(2000)),
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating chat model")
		return nil, fmt.Errorf("error creating chat model: %w", err)
	}
	return chatModel, nil
}
