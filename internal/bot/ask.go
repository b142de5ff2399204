package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/Dmetrikx/goDiscordArcade/internal/ai"
)

// handleAsk handles the ask command
func (b *Bot) handleAsk(ctx context.Context, req *Request) error {
	if b.aiClient == nil {
		return conflictError("❌ No AI provider is configured.")
	}

	prompt := strings.TrimSpace(req.Rest(0))
	if prompt == "" {
		return validationError("Usage: %sask <question>", b.config.CommandPrefix)
	}

	if ok, wait := b.limiter.Allow(req.Event.AuthorID); !ok {
		return conflictError("⏳ Slow down! Try again in %s.", formatWait(wait))
	}

	req.Send(ctx, "⏳ Thinking...")

	// No store access happens across this call
	response, err := b.aiClient.Ask(ctx, prompt)
	if ai.IsTemporary(err) {
		return &CommandError{Kind: KindCollaborator, Message: "❌ The AI provider is busy, please try again in a minute.", Err: fmt.Errorf("ask: %w", err)}
	}
	if err != nil {
		return &CommandError{Kind: KindCollaborator, Message: "❌ The AI request failed, please try again later.", Err: fmt.Errorf("ask: %w", err)}
	}

	response = strings.TrimSpace(response)
	if response == "" {
		response = "No response."
	}
	req.Send(ctx, truncate(response, MaxAskReplyLength))
	return nil
}
