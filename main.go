package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/rhea-assistant/server/internal/agent"
	"github.com/rhea-assistant/server/internal/agent/graph"
	"github.com/rhea-assistant/server/internal/agent/graph/nodes"
	"github.com/rhea-assistant/server/internal/agent/model"
	"github.com/rhea-assistant/server/internal/agent/repo"
	"github.com/rhea-assistant/server/internal/core"
	"github.com/rhea-assistant/server/internal/memory"
	"github.com/rhea-assistant/server/internal/tools"
	logx "github.com/rhea-assistant/server/pkg/logger"
	pkgredis "github.com/rhea-assistant/server/pkg/redis"
)

// AppConfig defines all configurable parameters for the orchestrator,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	// Infrastructure
	Redis pkgredis.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Agent configs
	Chat         model.ChatModelConfig
	Memory       model.MemoryConfig
	Conversation model.ConversationConfig
	Tools        model.ToolsConfig
	Prompt       model.PromptConfig
}

func main() {
	ctx := context.Background()

	// Load .env file
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	// Load structured config from env
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(cfg.Environment)})

	rdb, err := cfg.Redis.New()
	if err != nil {
		log.Fatalf("Failed to initialise Redis client: %v", err)
	}
	defer rdb.Close()

	client, err := nodes.NewGeminiClient(ctx, cfg.APIKey, cfg.BaseURL)
	if err != nil {
		log.Fatalf("Failed to create Gemini client: %v", err)
	}

	chatModel, err := nodes.NewChatModel(ctx, client, cfg.Chat)
	if err != nil {
		log.Fatalf("Failed to create chat model: %v", err)
	}

	// Memory gateway: Gemini embeddings over a Redis passage store.
	embedder := memory.NewGeminiEmbedder(client, cfg.Memory.EmbedModel)
	memoryStore := memory.NewRedisPassageStore(rdb, embedder, cfg.Memory)

	// Tool gateway: builtin tools plus MCP services discovered from env.
	invokeTimeout, err := time.ParseDuration(cfg.Tools.InvokeTimeout)
	if err != nil {
		log.Fatalf("Invalid TOOLS_INVOKE_TIMEOUT '%s': %v", cfg.Tools.InvokeTimeout, err)
	}
	toolGateway := tools.NewGateway(invokeTimeout)
	if err := toolGateway.Register(ctx, tools.NewWeatherTool()); err != nil {
		log.Fatalf("Failed to register weather tool: %v", err)
	}
	httpClient := &http.Client{Timeout: invokeTimeout}
	for _, svc := range tools.DiscoverServices(os.Environ(), cfg.Tools.DiscoveryPrefix) {
		if err := toolGateway.Register(ctx, tools.NewServiceTool(svc, httpClient)); err != nil {
			log.Fatalf("Failed to register service tool %s: %v", svc.Name, err)
		}
	}

	// Checkpoint store
	ttl, err := time.ParseDuration(cfg.Conversation.TTL)
	if err != nil {
		log.Fatalf("Invalid CONVERSATION_TTL '%s': %v", cfg.Conversation.TTL, err)
	}
	checkpoints := repo.NewRedisCheckpointRepository(rdb, ttl)

	runner, err := graph.BuildTurnGraph(ctx, graph.Config{
		ChatModel:   chatModel,
		ModelName:   cfg.Chat.Model,
		Memory:      memoryStore,
		Tools:       toolGateway,
		Checkpoints: checkpoints,
		Prompt:      cfg.Prompt,
		MemoryTopK:  cfg.Memory.TopK,
	})
	if err != nil {
		log.Fatalf("Failed to build turn graph: %v", err)
	}

	engine := agent.NewEngine(runner, memoryStore, cfg.Prompt.AssistantName)

	// Minimal local transport: one thread, one message per input line. A
	// real deployment plugs a chat platform adapter in front of the engine.
	threadID := os.Getenv("THREAD_ID")
	if threadID == "" {
		threadID = "local-cli"
	}

	fmt.Printf("%s is ready. Type a message (Ctrl-D to quit).\n", cfg.Prompt.AssistantName)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		response, err := engine.HandleMessage(ctx, threadID, text)
		if err != nil {
			logx.Error().Err(err).Msg("turn failed; delivering apology")
		}
		fmt.Println(response)
	}
}
