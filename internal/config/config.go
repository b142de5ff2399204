package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults applied when the corresponding environment variable is unset
const (
	DefaultCommandPrefix = "?"
	DefaultDataFile      = "bot_data.json"
	DefaultPort          = "8080"
	DefaultLogFormat     = "json"
	DefaultLogLevel      = "info"
	DefaultAskRateLimit  = 3
	DefaultAskModel      = "gpt-3.5-turbo"
	DefaultAskMaxTokens  = 800
)

// Config holds all configuration values
type Config struct {
	DiscordToken          string
	OwnerID               string
	OpenAIAPIKey          string
	XAIAPIKey             string
	CommandPrefix         string
	DataFile              string
	DatabaseURL           string
	Port                  string
	LogFormat             string
	LogLevel              string
	AskRateLimit          int
	AskModel              string
	AskMaxTokens          int
	SaveDebounce          time.Duration
	RegisterSlashCommands bool
}

// LoadConfig loads environment variables from .env file and returns a Config struct
func LoadConfig() (*Config, error) {
	// Try to load .env file (optional - may not exist in production)
	_ = godotenv.Load(".env")

	config := &Config{
		DiscordToken:  os.Getenv("DISCORD_TOKEN"),
		OwnerID:       os.Getenv("OWNER_ID"),
		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		XAIAPIKey:     os.Getenv("XAI_API_KEY"),
		CommandPrefix: envOr("COMMAND_PREFIX", DefaultCommandPrefix),
		DataFile:      envOr("DATA_FILE", DefaultDataFile),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		Port:          envOr("PORT", DefaultPort),
		LogFormat:     strings.ToLower(envOr("LOG_FORMAT", DefaultLogFormat)),
		LogLevel:      strings.ToLower(envOr("LOG_LEVEL", DefaultLogLevel)),
		AskModel:      envOr("ASK_MODEL", DefaultAskModel),
	}

	var err error
	if config.AskRateLimit, err = envInt("ASK_RATE_LIMIT", DefaultAskRateLimit); err != nil {
		return nil, err
	}
	if config.AskMaxTokens, err = envInt("ASK_MAX_TOKENS", DefaultAskMaxTokens); err != nil {
		return nil, err
	}

	if v := os.Getenv("SAVE_DEBOUNCE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, wrapConfigError("SAVE_DEBOUNCE", "must be a duration like 500ms or 2s", err)
		}
		config.SaveDebounce = d
	}

	if v := os.Getenv("REGISTER_SLASH_COMMANDS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, wrapConfigError("REGISTER_SLASH_COMMANDS", "must be true or false", err)
		}
		config.RegisterSlashCommands = b
	}

	return config, nil
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.DiscordToken == "" {
		return NewConfigError("DISCORD_TOKEN", "environment variable is required")
	}

	if c.CommandPrefix == "" {
		return NewConfigError("COMMAND_PREFIX", "cannot be empty")
	}

	if c.DatabaseURL == "" && c.DataFile == "" {
		return NewConfigError("DATA_FILE", "a data file is required when DATABASE_URL is not set")
	}

	if c.AskRateLimit <= 0 {
		return NewConfigError("ASK_RATE_LIMIT", "must be greater than zero")
	}

	if c.AskMaxTokens <= 0 {
		return NewConfigError("ASK_MAX_TOKENS", "must be greater than zero")
	}

	if c.SaveDebounce < 0 {
		return NewConfigError("SAVE_DEBOUNCE", "cannot be negative")
	}

	switch c.LogFormat {
	case "json", "text":
	default:
		return NewConfigError("LOG_FORMAT", "must be json or text")
	}

	return nil
}

// AskEnabled reports whether any completion provider has credentials
func (c *Config) AskEnabled() bool {
	return c.OpenAIAPIKey != "" || c.XAIAPIKey != ""
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, wrapConfigError(key, "must be an integer", err)
	}
	return n, nil
}
