package config

// OpenAIConfig carries the per-provider settings internal/llm/openai.Client
// needs to talk to either the hosted OpenAI API or an OpenAI-compatible
// self-hosted endpoint (mlx_lm.server, vLLM, etc).
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	API         string // "completions" (default) or "responses"
	LogPayloads bool
	ExtraParams map[string]any
	ExtraHeaders map[string]string
}

// AnthropicPromptCacheConfig controls which parts of an Anthropic request
// internal/llm/anthropic.Client marks cache_control: system prompt, tool
// definitions, and/or prior turns' messages.
type AnthropicPromptCacheConfig struct {
	Enabled       bool
	CacheSystem   bool
	CacheTools    bool
	CacheMessages bool
}

// AnthropicConfig carries the settings internal/llm/anthropic.Client needs.
type AnthropicConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	ExtraParams map[string]any
	PromptCache AnthropicPromptCacheConfig
}

// GoogleConfig carries the settings internal/llm/google.Client needs to
// talk to the Gemini API (or an OpenAI-compatible proxy in front of it).
type GoogleConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout int // seconds; 0 uses genai's default
}
