package bot

import "time"

// Discord message and command constants
const (
	MaxDiscordMessageLength = 2000
	MaxAskReplyLength       = 1900
	LeaderboardSize         = 10
	HourlyWindow            = time.Hour
	HourlyRewardMin         = 10
	HourlyRewardMax         = 50
	DefaultMuteMinutes      = 60
	MaxMuteMinutes          = 28 * 24 * 60
	MaxEditBalance          = 1_000_000_000_000
	RaceRevealDelay         = 3 * time.Second
	CurrencySymbol          = "💰"
)
