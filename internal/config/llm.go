package config

// OpenAIConfig configures the OpenAI-compatible completion client, matching
// the constructor shape of internal/llm/openai.New.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	API         string // "completions" (default) or "responses"
	ExtraParams map[string]any
	LogPayloads bool
}

// AnthropicPromptCacheConfig controls which message regions Anthropic prompt
// caching applies to, matching internal/llm/anthropic.New's expectations.
type AnthropicPromptCacheConfig struct {
	Enabled       bool
	CacheSystem   bool
	CacheTools    bool
	CacheMessages bool
}

// AnthropicConfig configures the Anthropic client, matching the constructor
// shape of internal/llm/anthropic.New.
type AnthropicConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	PromptCache AnthropicPromptCacheConfig
	ExtraParams map[string]any
}

// GoogleConfig configures the Gemini client, matching the constructor shape
// of internal/llm/google.New. Timeout is in whole seconds.
type GoogleConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout int
}

// LLMClientConfig selects and configures the active completion provider.
type LLMClientConfig struct {
	Provider   string // "openai" | "local" | "anthropic" | "google"
	OpenAI     OpenAIConfig
	Anthropic  AnthropicConfig
	Google     GoogleConfig
}
