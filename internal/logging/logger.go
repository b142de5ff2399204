package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

// NewLogger creates a new structured logger with JSON output
func NewLogger(level slog.Level) *slog.Logger {
	return newJSONLogger(os.Stdout, level)
}

// NewTextLogger creates a new colored text logger for development
func NewTextLogger(level slog.Level) *slog.Logger {
	handler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	})
	return slog.New(handler)
}

// New picks the handler for the given format ("json" or "text")
func New(format string, level slog.Level) *slog.Logger {
	if format == "text" {
		return NewTextLogger(level)
	}
	return NewLogger(level)
}

func newJSONLogger(w io.Writer, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: level,
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// ParseLevel converts a level name into a slog.Level
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level: %s", level)
	}
}

var discordgoLevels = map[int]slog.Level{
	discordgo.LogError:         slog.LevelError,
	discordgo.LogWarning:       slog.LevelWarn,
	discordgo.LogInformational: slog.LevelInfo,
	discordgo.LogDebug:         slog.LevelDebug,
}

// RouteDiscordgo sends discordgo's internal log output through logger
func RouteDiscordgo(logger *slog.Logger) {
	log := logger.With("logger", "discordgo")
	discordgo.Logger = func(msgL, _ int, format string, a ...interface{}) {
		level, ok := discordgoLevels[msgL]
		if !ok {
			level = slog.LevelInfo
		}
		log.Log(context.Background(), level, strings.ReplaceAll(fmt.Sprintf(format, a...), "\n", ""))
	}
}
