package ai

import "context"

// Client defines the interface for text completion
type Client interface {
	// Ask sends a single user prompt and returns the completion text
	Ask(ctx context.Context, prompt string) (string, error)
}
