package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Dmetrikx/goDiscordArcade/internal/session"
)

func (b *Bot) handleRace(ctx context.Context, req *Request) error {
	scope := req.Scope()
	race, err := b.sessions.StartRace(scope)
	if errors.Is(err, session.ErrSessionLive) {
		return conflictError("A race is already open here.")
	}
	if err != nil {
		return err
	}

	msgID := req.Send(ctx, formatRaceLobby(race, b.config.CommandPrefix))
	b.sessions.SetRaceMessage(scope, race.ID, req.Event.ChannelID, msgID)
	return nil
}

func (b *Bot) handleBet(ctx context.Context, req *Request) error {
	if len(req.Args) < 2 {
		return validationError("Usage: %sbet <horse#> <amount>", b.config.CommandPrefix)
	}
	horse, err := strconv.Atoi(req.Args[0])
	if err != nil {
		return validationError("Invalid horse number.")
	}
	amount, err := parseAmount(req.Args[1])
	if err != nil {
		return err
	}

	w, err := b.sessions.PlaceWager(req.Scope(), req.Event.AuthorID, horse, amount)
	if errors.Is(err, session.ErrNoSession) {
		return conflictError("No race is open. Start one with %srace", b.config.CommandPrefix)
	}
	if err != nil {
		return err
	}
	req.Reply(ctx, "%s bet %d %s on horse #%d", req.Author().Mention(), w.Amount, CurrencySymbol, w.Horse)
	return nil
}

func (b *Bot) handleStartRace(ctx context.Context, req *Request) error {
	// Payouts are settled before the staged reveal starts
	outcome, err := b.sessions.ResolveRace(req.Scope())
	switch {
	case errors.Is(err, session.ErrNoSession):
		return conflictError("There is no race to start.")
	case errors.Is(err, session.ErrNoWagers):
		return conflictError("Nobody has bet yet. The race is cancelled after %s without bets.", session.RaceLobbyTimeout)
	case err != nil:
		return err
	}

	req.Send(ctx, "🚦 The race is starting...")
	if !sleepCtx(ctx, b.revealDelay) {
		return nil
	}
	req.Send(ctx, formatRaceResult(outcome))
	return nil
}

// sleepCtx waits for d or until ctx is done
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (b *Bot) handleQuiz(ctx context.Context, req *Request) error {
	prefix := b.config.CommandPrefix
	sub, req := subcommand(req)
	scope := req.Scope()

	switch sub {
	case "", "help":
		req.Reply(ctx, "%[1]squiz start | %[1]squiz answer <text> | %[1]squiz end", prefix)
		return nil

	case "start":
		q, err := b.sessions.StartQuiz(scope)
		if errors.Is(err, session.ErrSessionLive) {
			return conflictError("A quiz is already running.")
		}
		if err != nil {
			return err
		}
		req.Send(ctx, fmt.Sprintf("🎲 Quiz: **%s** (answer with %squiz answer <text>)", q.Prompt, prefix))
		return nil

	case "answer":
		text := strings.Join(req.Args, " ")
		if strings.TrimSpace(text) == "" {
			return validationError("Usage: %squiz answer <text>", prefix)
		}
		res, err := b.sessions.AnswerQuiz(scope, req.Event.AuthorID, text)
		if errors.Is(err, session.ErrNoSession) {
			return conflictError("No quiz is running.")
		}
		if err != nil {
			return err
		}
		if !res.Correct {
			req.Reply(ctx, "❌ Wrong!")
			return nil
		}
		req.Reply(ctx, "✅ Correct! +%d %s", res.Reward, CurrencySymbol)
		return nil

	case "end":
		board, err := b.sessions.EndQuiz(scope)
		if errors.Is(err, session.ErrNoSession) {
			return conflictError("No quiz is running.")
		}
		if err != nil {
			return err
		}
		if len(board) == 0 {
			req.Reply(ctx, "Quiz over! Nobody scored.")
			return nil
		}
		lines := make([]string, 0, len(board))
		for i, s := range board {
			lines = append(lines, fmt.Sprintf("#%d <@%s>: %d points", i+1, s.Account, s.Correct))
		}
		req.Send(ctx, "📊 Quiz results:\n"+strings.Join(lines, "\n"))
		return nil

	default:
		return validationError("Usage: %squiz [start|answer <text>|end|help]", prefix)
	}
}

func (b *Bot) handleGuess(ctx context.Context, req *Request) error {
	err := b.sessions.StartGuess(req.Event.ChannelID)
	if errors.Is(err, session.ErrSessionLive) {
		return conflictError("A guessing game is already running in this channel.")
	}
	if err != nil {
		return err
	}
	req.Send(ctx, fmt.Sprintf("🔢 I'm thinking of a number between %d and %d. Type your guesses! You have %s.",
		session.GuessMin, session.GuessMax, session.GuessTimeout))
	return nil
}
