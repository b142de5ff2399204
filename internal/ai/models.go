package ai

// Provider and model constants
const (
	ProviderGrok       = "grok"
	ProviderOpenAI     = "openai"
	DefaultGrokModel   = "grok-3"
	DefaultOpenAIModel = "gpt-3.5-turbo"
	DefaultMaxTokens   = 800

	grokCompletionsURL = "https://api.x.ai/v1/chat/completions"
)
