package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"github.com/Dmetrikx/goDiscordArcade/internal/ai"
	"github.com/Dmetrikx/goDiscordArcade/internal/bot"
	"github.com/Dmetrikx/goDiscordArcade/internal/config"
	"github.com/Dmetrikx/goDiscordArcade/internal/discord"
	"github.com/Dmetrikx/goDiscordArcade/internal/health"
	"github.com/Dmetrikx/goDiscordArcade/internal/logging"
	"github.com/Dmetrikx/goDiscordArcade/internal/market"
	"github.com/Dmetrikx/goDiscordArcade/internal/session"
	"github.com/Dmetrikx/goDiscordArcade/internal/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := logging.New(cfg.LogFormat, level)
	logging.RouteDiscordgo(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		logger.Error("failed to open storage", tint.Err(err))
		return err
	}

	st := store.New(backend, logger, store.Options{Debounce: cfg.SaveDebounce})
	st.Open(ctx)
	if refunds := st.RefundEscrow(); len(refunds) > 0 {
		logger.Info("refunded unresolved wagers", "scopes", len(refunds))
	}

	mkt := market.New(st, logger, nil)
	mkt.Seed()
	go mkt.Run(ctx)

	registry := session.NewRegistry(st, logger, session.Options{})

	// An interface holding a typed nil would look configured
	var aiClient ai.Client
	if cfg.AskEnabled() {
		c := ai.NewAIClient(ai.Options{
			OpenAIAPIKey: cfg.OpenAIAPIKey,
			XAIAPIKey:    cfg.XAIAPIKey,
			Model:        cfg.AskModel,
			MaxTokens:    cfg.AskMaxTokens,
		}, logger)
		logger.Info("ask enabled", "provider", c.Provider())
		aiClient = c
	}

	dg, err := discord.NewDiscordSession(cfg.DiscordToken)
	if err != nil {
		return fmt.Errorf("error creating Discord session: %w", err)
	}

	b := bot.NewBot(cfg, bot.Deps{
		Session:  dg,
		Store:    st,
		Market:   mkt,
		Sessions: registry,
		AI:       aiClient,
		Shutdown: stop,
	}, logger)

	if err := b.Start(ctx); err != nil {
		logger.Error("error starting bot", tint.Err(err))
		_ = st.Close(context.Background())
		return err
	}

	srv := health.NewServer(":"+cfg.Port, func() health.Status {
		return health.Status{
			BotReady:     b.Ready(),
			LiveSessions: registry.Live().Total(),
		}
	}, logger)
	healthErr := make(chan error, 1)
	go func() { healthErr <- srv.Run(ctx) }()

	logger.Info("bot is now running, press CTRL-C to exit")

	select {
	case <-ctx.Done():
	case err := <-healthErr:
		if err != nil {
			logger.Error("health server exited", tint.Err(err))
		}
		<-ctx.Done()
	}

	logger.Info("shutting down bot")
	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	registry.Close()
	var errs []error
	if err := b.Close(closeCtx); err != nil {
		errs = append(errs, err)
	}
	if err := st.Close(closeCtx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func openBackend(ctx context.Context, cfg *config.Config) (store.Backend, error) {
	if cfg.DatabaseURL != "" {
		return store.NewPostgresBackend(ctx, cfg.DatabaseURL, store.DefaultDocumentName)
	}
	return store.NewFileBackend(cfg.DataFile), nil
}
