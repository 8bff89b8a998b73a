package model

// ================ Config ================

type ChatModelConfig struct {
	Model       string  `envconfig:"CHAT_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"CHAT_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"CHAT_TEMPERATURE" default:"0.4"`
}

type MemoryConfig struct {
	// TopK is the similarity-search result count. Deployment-tunable:
	// some installations run with 4.
	TopK       int    `envconfig:"MEMORY_TOP_K" default:"2"`
	KeyPrefix  string `envconfig:"MEMORY_KEY_PREFIX" default:"memory:passage:"`
	MaxScan    int    `envconfig:"MEMORY_MAX_SCAN" default:"2048"`
	EmbedModel string `envconfig:"GEMINI_EMBED_MODEL" default:"text-embedding-004"`
}

type ConversationConfig struct {
	TTL string `envconfig:"CONVERSATION_TTL" default:"168h"`
}

type ToolsConfig struct {
	DiscoveryPrefix string `envconfig:"TOOLS_DISCOVERY_PREFIX" default:"RHEA_"`
	InvokeTimeout   string `envconfig:"TOOLS_INVOKE_TIMEOUT" default:"30s"`
}

type PromptConfig struct {
	AssistantName string `envconfig:"PROMPT_ASSISTANT_NAME" default:"Rhea"`
	// IncludeToolCatalog toggles the tool-description section of the
	// system prompt. Prompt variants exist in the wild; keep it tunable.
	IncludeToolCatalog bool `envconfig:"PROMPT_INCLUDE_TOOL_CATALOG" default:"true"`
}
