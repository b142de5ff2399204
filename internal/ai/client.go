package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/lmittmann/tint"
	"github.com/sashabaranov/go-openai"
)

// requestTimeout bounds one completion call
const requestTimeout = 60 * time.Second

// Options configure an AIClient
type Options struct {
	OpenAIAPIKey string
	XAIAPIKey    string
	Model        string
	MaxTokens    int
	// GrokURL overrides the xAI endpoint (tests)
	GrokURL string
}

// AIClient handles interactions with OpenAI and Grok APIs
type AIClient struct {
	openaiClient *openai.Client
	xaiAPIKey    string
	provider     string
	model        string
	maxTokens    int
	grokURL      string
	httpClient   *http.Client
	logger       *slog.Logger
}

// NewAIClient creates a new AI client with proper timeouts.
// OpenAI is used when its key is set; otherwise requests go to Grok.
func NewAIClient(opts Options, logger *slog.Logger) *AIClient {
	c := &AIClient{
		xaiAPIKey: opts.XAIAPIKey,
		model:     opts.Model,
		maxTokens: opts.MaxTokens,
		grokURL:   opts.GrokURL,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		logger: logger,
	}

	if opts.OpenAIAPIKey != "" {
		c.openaiClient = openai.NewClient(opts.OpenAIAPIKey)
		c.provider = ProviderOpenAI
		if c.model == "" {
			c.model = DefaultOpenAIModel
		}
	} else {
		c.provider = ProviderGrok
		// OpenAI model names mean nothing to xAI
		if c.model == "" || c.model == DefaultOpenAIModel {
			c.model = DefaultGrokModel
		}
	}

	if c.maxTokens <= 0 {
		c.maxTokens = DefaultMaxTokens
	}
	if c.grokURL == "" {
		c.grokURL = grokCompletionsURL
	}
	return c
}

// Provider returns the active provider name
func (c *AIClient) Provider() string {
	return c.provider
}

// Ask sends prompt to the configured provider and returns the response
func (c *AIClient) Ask(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", NewValidationError("prompt", "cannot be empty")
	}

	c.logger.InfoContext(ctx, "sending AI request",
		"provider", c.provider,
		"model", c.model,
		"max_tokens", c.maxTokens,
		"prompt_length", len(prompt))

	switch c.provider {
	case ProviderOpenAI:
		return c.askOpenAI(ctx, prompt)
	default:
		return c.askGrok(ctx, prompt)
	}
}

// askOpenAI sends a request to OpenAI API
func (c *AIClient) askOpenAI(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	resp, err := c.openaiClient.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model:     c.model,
			MaxTokens: c.maxTokens,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
		},
	)
	if err != nil {
		c.logger.ErrorContext(ctx, "OpenAI API error", tint.Err(err))
		var oaErr *openai.APIError
		if errors.As(err, &oaErr) {
			return "", NewAPIError("OpenAI", oaErr.HTTPStatusCode, oaErr.Message, err)
		}
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		c.logger.ErrorContext(ctx, "no response from OpenAI")
		return "", NewAPIError("OpenAI", 0, "no response from OpenAI", nil)
	}

	c.logger.InfoContext(ctx, "received OpenAI response",
		"response_length", len(resp.Choices[0].Message.Content),
		"finish_reason", resp.Choices[0].FinishReason)

	return resp.Choices[0].Message.Content, nil
}

type grokMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type grokRequest struct {
	Model     string        `json:"model"`
	Messages  []grokMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type grokResponse struct {
	Choices []struct {
		Message grokMessage `json:"message"`
	} `json:"choices"`
}

// askGrok sends a request to Grok API
func (c *AIClient) askGrok(ctx context.Context, prompt string) (string, error) {
	if c.xaiAPIKey == "" {
		return "", NewValidationError("XAI_API_KEY", "environment variable not set")
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	jsonData, err := json.Marshal(grokRequest{
		Model:     c.model,
		Messages:  []grokMessage{{Role: "user", Content: prompt}},
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.grokURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.xaiAPIKey))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.ErrorContext(ctx, "Grok API request failed", tint.Err(err))
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		c.logger.ErrorContext(ctx, "Grok API error",
			"status_code", resp.StatusCode,
			"response_body", string(body))
		return "", NewAPIError("Grok", resp.StatusCode, string(body), nil)
	}

	var result grokResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if len(result.Choices) == 0 || result.Choices[0].Message.Content == "" {
		c.logger.ErrorContext(ctx, "no response from Grok")
		return "", NewAPIError("Grok", resp.StatusCode, "no response from Grok", nil)
	}

	content := result.Choices[0].Message.Content
	c.logger.InfoContext(ctx, "received Grok response",
		"response_length", len(content))

	return content, nil
}
