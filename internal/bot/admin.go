package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Dmetrikx/goDiscordArcade/internal/store"
)

func (b *Bot) handleAdmin(ctx context.Context, req *Request) error {
	sub, req := subcommand(req)
	if sub == "" {
		return validationError("Admin commands: ban/kick/mute/unmute/warn/warns/editbal")
	}
	if req.Event.GuildID == "" {
		return validationError("Admin commands only work in a server.")
	}

	switch sub {
	case "ban":
		return b.handleBan(ctx, req)
	case "kick":
		return b.handleKick(ctx, req)
	case "mute":
		return b.handleMute(ctx, req)
	case "unmute":
		return b.handleUnmute(ctx, req)
	case "warn":
		return b.handleWarn(ctx, req)
	case "warns":
		return b.handleWarns(ctx, req)
	case "editbal":
		return b.handleEditBalance(ctx, req)
	default:
		return validationError("Admin commands: ban/kick/mute/unmute/warn/warns/editbal")
	}
}

// requireTarget returns the mentioned user or a usage error
func requireTarget(req *Request, action string) (Target, error) {
	target, ok := req.mentionedUser()
	if !ok {
		return Target{}, validationError("Mention the user to %s.", action)
	}
	return target, nil
}

// reasonFrom joins the non-mention arguments, with a fallback
func reasonFrom(req *Request) string {
	if r := strings.Join(withoutMentions(req.Args), " "); r != "" {
		return r
	}
	return "No reason"
}

func (b *Bot) handleBan(ctx context.Context, req *Request) error {
	target, err := requireTarget(req, "ban")
	if err != nil {
		return err
	}
	reason := reasonFrom(req)
	if err := b.session.GuildBanCreateWithReason(req.Event.GuildID, target.ID, reason, 0); err != nil {
		return collaboratorError(fmt.Errorf("ban %s: %w", target.ID, err))
	}
	b.logger.InfoContext(ctx, "member banned",
		"guild_id", req.Event.GuildID,
		"user_id", target.ID,
		"by", req.Event.AuthorID)
	req.Reply(ctx, "🔨 Banned %s", target.Mention())
	return nil
}

func (b *Bot) handleKick(ctx context.Context, req *Request) error {
	target, err := requireTarget(req, "kick")
	if err != nil {
		return err
	}
	reason := reasonFrom(req)
	if err := b.session.GuildMemberDeleteWithReason(req.Event.GuildID, target.ID, reason); err != nil {
		return collaboratorError(fmt.Errorf("kick %s: %w", target.ID, err))
	}
	b.logger.InfoContext(ctx, "member kicked",
		"guild_id", req.Event.GuildID,
		"user_id", target.ID,
		"by", req.Event.AuthorID)
	req.Reply(ctx, "👢 Kicked %s", target.Mention())
	return nil
}

func (b *Bot) handleMute(ctx context.Context, req *Request) error {
	target, err := requireTarget(req, "mute")
	if err != nil {
		return err
	}

	minutes := DefaultMuteMinutes
	if rest := withoutMentions(req.Args); len(rest) > 0 {
		n, err := strconv.Atoi(rest[0])
		if err != nil || n <= 0 || n > MaxMuteMinutes {
			return validationError("Minutes must be between 1 and %d.", MaxMuteMinutes)
		}
		minutes = n
	}

	until := time.Now().Add(time.Duration(minutes) * time.Minute)
	if err := b.session.GuildMemberTimeout(req.Event.GuildID, target.ID, &until); err != nil {
		return collaboratorError(fmt.Errorf("timeout %s: %w", target.ID, err))
	}
	req.Reply(ctx, "🔇 Muted %s for %d minutes", target.Mention(), minutes)
	return nil
}

func (b *Bot) handleUnmute(ctx context.Context, req *Request) error {
	target, err := requireTarget(req, "unmute")
	if err != nil {
		return err
	}
	if err := b.session.GuildMemberTimeout(req.Event.GuildID, target.ID, nil); err != nil {
		return collaboratorError(fmt.Errorf("clear timeout %s: %w", target.ID, err))
	}
	req.Reply(ctx, "🔊 Unmuted %s", target.Mention())
	return nil
}

func (b *Bot) handleWarn(ctx context.Context, req *Request) error {
	target, err := requireTarget(req, "warn")
	if err != nil {
		return err
	}
	w := b.store.Warn(target.ID, req.Event.AuthorName, reasonFrom(req))
	req.Reply(ctx, "⚠️ Warned %s: %s", target.Mention(), w.Reason)
	return nil
}

func (b *Bot) handleWarns(ctx context.Context, req *Request) error {
	target, err := requireTarget(req, "look up")
	if err != nil {
		return err
	}
	list := b.store.Warnings(target.ID)
	if len(list) == 0 {
		req.Reply(ctx, "%s has no warnings.", target.Mention())
		return nil
	}

	lines := make([]string, 0, len(list))
	for i, w := range list {
		lines = append(lines, fmt.Sprintf("%d. by %s (%s): %s", i+1, w.Issuer, w.Time.Format(time.DateTime), w.Reason))
	}
	req.Send(ctx, fmt.Sprintf("📋 Warnings for %s:\n%s", target.Mention(), strings.Join(lines, "\n")))
	return nil
}

func (b *Bot) handleEditBalance(ctx context.Context, req *Request) error {
	usage := validationError("Usage: %sadcmd editbal @user <amount>", b.config.CommandPrefix)
	target, ok := req.mentionedUser()
	rest := withoutMentions(req.Args)
	if !ok || len(rest) == 0 {
		return usage
	}
	value, err := strconv.ParseInt(rest[len(rest)-1], 10, 64)
	if err != nil {
		return usage
	}
	if value < -MaxEditBalance || value > MaxEditBalance {
		return validationError("Balance must be between -%d and %d.", MaxEditBalance, MaxEditBalance)
	}

	b.store.Set(target.ID, value)
	b.logger.InfoContext(ctx, "balance edited",
		"user_id", target.ID,
		"value", value,
		"by", req.Event.AuthorID)
	req.Reply(ctx, "✅ Set %s to %d %s", target.Mention(), value, CurrencySymbol)
	return nil
}

func (b *Bot) handleOwner(ctx context.Context, req *Request) error {
	sub, req := subcommand(req)
	switch sub {
	case "shutdown":
		req.Reply(ctx, "Shutting down...")
		b.logger.InfoContext(ctx, "owner requested shutdown", "user_id", req.Event.AuthorID)
		b.shutdown()
		return nil

	case "say":
		text := req.Rest(0)
		if text == "" {
			return validationError("Usage: %sowncmd say <text>", b.config.CommandPrefix)
		}
		req.Send(ctx, text)
		return nil

	case "stats":
		req.Send(ctx, b.diagnostics())
		return nil

	case "save":
		if strings.EqualFold(req.Rest(0), "force") {
			if err := b.store.Resume(ctx); err != nil {
				return collaboratorError(fmt.Errorf("resume store: %w", err))
			}
			b.logger.WarnContext(ctx, "owner replaced stored document", "user_id", req.Event.AuthorID)
			req.Reply(ctx, "💾 Writes resumed. The stored document now matches memory.")
			return nil
		}
		err := b.store.Flush(ctx)
		if errors.Is(err, store.ErrWritesSuspended) {
			return conflictError("⚠️ Writes are paused because the stored document could not be read. %sowncmd save force overwrites it.", b.config.CommandPrefix)
		}
		if err != nil {
			return collaboratorError(fmt.Errorf("flush store: %w", err))
		}
		req.Reply(ctx, "💾 Saved.")
		return nil

	default:
		return validationError("Owner commands: shutdown/say/stats/save")
	}
}

// diagnostics renders the closed set of runtime facts the owner can query
func (b *Bot) diagnostics() string {
	st := b.store.Stats()
	live := b.sessions.Live()
	return fmt.Sprintf("```\nuptime:        %s\nlatency:       %s\naccounts:      %d\ncoins:         %d\nsymbols:       %d\nwarnings:      %d\nescrow scopes: %d\npending write: %t\nwrites paused: %t\nraces:         %d\nquizzes:       %d\nguesses:       %d\n```",
		time.Since(b.started).Round(time.Second),
		b.session.HeartbeatLatency().Round(time.Millisecond),
		st.Accounts,
		st.TotalBalance,
		st.Symbols,
		st.Warnings,
		st.EscrowScopes,
		st.PendingWrites,
		st.WritesSuspended,
		live.Races,
		live.Quizzes,
		live.Guesses)
}
