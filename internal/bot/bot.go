package bot

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"

	"github.com/Dmetrikx/goDiscordArcade/internal/ai"
	"github.com/Dmetrikx/goDiscordArcade/internal/config"
	"github.com/Dmetrikx/goDiscordArcade/internal/discord"
	"github.com/Dmetrikx/goDiscordArcade/internal/market"
	"github.com/Dmetrikx/goDiscordArcade/internal/session"
	"github.com/Dmetrikx/goDiscordArcade/internal/store"
)

// Deps are the collaborators a Bot dispatches to
type Deps struct {
	Session  discord.Session
	Store    *store.Store
	Market   *market.Market
	Sessions *session.Registry

	// AI is nil when no completion provider is configured
	AI ai.Client

	// Shutdown is called by the owner shutdown command
	Shutdown func()
}

// Bot represents the Discord bot
type Bot struct {
	session  discord.Session
	store    *store.Store
	market   *market.Market
	sessions *session.Registry
	aiClient ai.Client
	limiter  *ai.RateLimiter
	config   *config.Config
	logger   *slog.Logger
	shutdown func()
	commands []command

	// revealDelay is the pause between the race start and the result
	revealDelay time.Duration
	started     time.Time

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewBot creates a new bot instance and registers its gateway handlers
func NewBot(cfg *config.Config, deps Deps, logger *slog.Logger) *Bot {
	b := &Bot{
		session:     deps.Session,
		store:       deps.Store,
		market:      deps.Market,
		sessions:    deps.Sessions,
		aiClient:    deps.AI,
		limiter:     ai.NewRateLimiter(cfg.AskRateLimit),
		config:      cfg,
		logger:      logger,
		shutdown:    deps.Shutdown,
		revealDelay: RaceRevealDelay,
		started:     time.Now(),
		rng:         rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	if b.shutdown == nil {
		b.shutdown = func() {}
	}
	b.commands = b.commandTable()

	b.sessions.SetHooks(session.Hooks{
		RaceExpired:  b.onRaceExpired,
		GuessExpired: b.onGuessExpired,
	})

	b.session.AddHandler(b.messageHandler)
	b.session.AddHandler(b.interactionHandler)

	return b
}

// Start starts the bot
func (b *Bot) Start(ctx context.Context) error {
	err := b.session.Open()
	if err != nil {
		return fmt.Errorf("error opening connection: %w", err)
	}

	user, err := b.session.User("@me")
	if err != nil {
		return fmt.Errorf("error obtaining account details: %w", err)
	}

	b.logger.InfoContext(ctx, "bot started",
		"username", user.Username,
		"user_id", user.ID,
		"prefix", b.config.CommandPrefix)

	if b.config.RegisterSlashCommands {
		b.registerSlashCommands(ctx, user.ID)
	}
	return nil
}

// Close closes the bot session
func (b *Bot) Close(ctx context.Context) error {
	b.logger.InfoContext(ctx, "closing bot session")
	return b.session.Close()
}

// Ready reports whether the gateway connection has identified
func (b *Bot) Ready() bool {
	state := b.session.GetState()
	return state != nil && state.User != nil
}

// messageHandler handles incoming messages
func (b *Bot) messageHandler(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil {
		return
	}
	// Ignore messages from the bot itself
	if s.State != nil && s.State.User != nil && m.Author.ID == s.State.User.ID {
		return
	}

	ev := Event{
		AuthorID:    m.Author.ID,
		AuthorName:  m.Author.Username,
		AuthorIsBot: m.Author.Bot,
		GuildID:     m.GuildID,
		ChannelID:   m.ChannelID,
		MessageID:   m.ID,
		Content:     m.Content,
	}
	for _, u := range m.Mentions {
		ev.Mentions = append(ev.Mentions, Target{ID: u.ID, Name: u.Username})
	}

	b.handleEvent(context.Background(), ev)
}

// handleEvent routes one message: prefixed text is a command, anything else
// may be a guess in a channel with a live guessing game
func (b *Bot) handleEvent(ctx context.Context, ev Event) {
	defer b.recoverPanic(ctx, ev)

	if ev.AuthorIsBot {
		return
	}

	out := &channelResponder{bot: b, channelID: ev.ChannelID, messageID: ev.MessageID}

	prefix := b.config.CommandPrefix
	if !strings.HasPrefix(ev.Content, prefix) {
		b.handleGuessMessage(ctx, ev, out)
		return
	}

	parts := strings.Fields(strings.TrimPrefix(ev.Content, prefix))
	if len(parts) == 0 {
		return
	}

	b.dispatch(ctx, &Request{
		Command: strings.ToLower(parts[0]),
		Args:    parts[1:],
		Event:   ev,
		out:     out,
	})
}

// dispatch runs the first command matching req. Unknown commands are ignored.
func (b *Bot) dispatch(ctx context.Context, req *Request) {
	cmd, ok := b.lookup(req.Command)
	if !ok {
		b.logger.DebugContext(ctx, "unknown command", "command", req.Command)
		return
	}

	b.logger.InfoContext(ctx, "received command",
		"command", req.Command,
		"user_id", req.Event.AuthorID,
		"username", req.Event.AuthorName,
		"guild_id", req.Event.GuildID,
		"channel_id", req.Event.ChannelID,
		"args_count", len(req.Args))

	if err := cmd.run(ctx, req); err != nil {
		b.replyError(ctx, req, err)
	}
}

func (b *Bot) replyError(ctx context.Context, req *Request, err error) {
	ce := classify(err)
	if ce.Kind == KindCollaborator {
		b.logger.ErrorContext(ctx, "command failed",
			"command", req.Command,
			"user_id", req.Event.AuthorID,
			tint.Err(err))
	} else {
		b.logger.DebugContext(ctx, "command rejected",
			"command", req.Command,
			"kind", ce.Kind.String(),
			"reason", ce.Message)
	}
	req.Reply(ctx, "%s", ce.Message)
}

func (b *Bot) recoverPanic(ctx context.Context, ev Event) {
	if r := recover(); r != nil {
		b.logger.ErrorContext(ctx, "panic in handler",
			"panic", r,
			"user_id", ev.AuthorID,
			"channel_id", ev.ChannelID,
			"stack", string(debug.Stack()))
	}
}

// capabilities resolves the caller's authorization level
func (b *Bot) capabilities(ctx context.Context, ev Event) Capability {
	var caps Capability
	if b.config.OwnerID != "" && ev.AuthorID == b.config.OwnerID {
		caps |= CapOwner
	}
	if ev.GuildID == "" {
		return caps
	}

	perms := ev.Permissions
	if !ev.PermissionsKnown {
		var err error
		perms, err = b.session.UserChannelPermissions(ev.AuthorID, ev.ChannelID)
		if err != nil {
			b.logger.WarnContext(ctx, "failed to resolve permissions",
				"user_id", ev.AuthorID,
				"channel_id", ev.ChannelID,
				tint.Err(err))
			return caps
		}
	}
	if perms&discordgo.PermissionAdministrator != 0 {
		caps |= CapAdmin
	}
	return caps
}

// handleGuessMessage submits plain channel messages to a live guessing game
func (b *Bot) handleGuessMessage(ctx context.Context, ev Event, out responder) {
	outcome := b.sessions.SubmitGuess(ev.ChannelID, ev.AuthorID, ev.Content)
	req := &Request{Event: ev, out: out}
	switch outcome {
	case session.GuessCorrect:
		req.Send(ctx, fmt.Sprintf("🎉 <@%s> guessed it! +%d %s", ev.AuthorID, session.GuessReward, CurrencySymbol))
	case session.GuessHigher:
		req.Reply(ctx, "📈 Higher!")
	case session.GuessLower:
		req.Reply(ctx, "📉 Lower!")
	}
}

// onRaceExpired retracts the lobby of a race nobody bet on
func (b *Bot) onRaceExpired(scope string, race session.Race) {
	ctx := context.Background()
	if race.ChannelID == "" {
		return
	}
	if race.MessageID != "" {
		if err := b.session.ChannelMessageDelete(race.ChannelID, race.MessageID); err != nil {
			b.logger.WarnContext(ctx, "failed to retract race lobby",
				"scope", scope,
				"race_id", race.ID,
				tint.Err(err))
		}
	}
	if _, err := b.session.ChannelMessageSend(race.ChannelID, "⏰ Time's up, nobody placed a bet. The race is cancelled."); err != nil {
		b.logger.ErrorContext(ctx, "failed to send race expiry notice", "scope", scope, tint.Err(err))
	}
}

// onGuessExpired reveals the secret of an unsolved guessing game
func (b *Bot) onGuessExpired(scope string, secret int) {
	msg := fmt.Sprintf("⏰ Time's up! The number was %d.", secret)
	if _, err := b.session.ChannelMessageSend(scope, msg); err != nil {
		b.logger.Error("failed to send guess expiry notice", "scope", scope, tint.Err(err))
	}
}

// randIntN returns a uniform int in [0, n)
func (b *Bot) randIntN(n int) int {
	b.rngMu.Lock()
	defer b.rngMu.Unlock()
	return b.rng.IntN(n)
}
