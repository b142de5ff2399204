package discord

import (
	"time"

	"github.com/bwmarrin/discordgo"
)

// Session defines the interface for Discord session operations
type Session interface {
	// Open opens a websocket connection to Discord
	Open() error

	// Close closes the websocket connection to Discord
	Close() error

	// User returns the current user
	User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error)

	// ChannelMessageSend sends a message to a channel
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)

	// ChannelMessageSendReply sends a message that references another one
	ChannelMessageSendReply(channelID string, content string, reference *discordgo.MessageReference, options ...discordgo.RequestOption) (*discordgo.Message, error)

	// ChannelMessageSendEmbed sends an embed to a channel
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)

	// ChannelMessageDelete deletes a message
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error

	// GuildBanCreateWithReason bans a member
	GuildBanCreateWithReason(guildID, userID, reason string, days int, options ...discordgo.RequestOption) error

	// GuildMemberDeleteWithReason kicks a member
	GuildMemberDeleteWithReason(guildID, userID, reason string, options ...discordgo.RequestOption) error

	// GuildMemberTimeout sets or clears (until == nil) a communication timeout
	GuildMemberTimeout(guildID string, userID string, until *time.Time, options ...discordgo.RequestOption) error

	// UserChannelPermissions returns the permission bits a user has in a channel
	UserChannelPermissions(userID, channelID string, fetchOptions ...discordgo.RequestOption) (int64, error)

	// InteractionRespond sends the initial response to an interaction
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error

	// FollowupMessageCreate sends an additional message for an interaction
	FollowupMessageCreate(interaction *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)

	// ApplicationCommandCreate registers a slash command
	ApplicationCommandCreate(appID string, guildID string, cmd *discordgo.ApplicationCommand, options ...discordgo.RequestOption) (*discordgo.ApplicationCommand, error)

	// HeartbeatLatency returns the gateway round trip
	HeartbeatLatency() time.Duration

	// AddHandler adds an event handler
	AddHandler(handler interface{}) func()

	// GetState returns the session state
	GetState() *discordgo.State
}

// DiscordSession wraps discordgo.Session to implement the Session interface
type DiscordSession struct {
	*discordgo.Session
}

// NewDiscordSession creates a new DiscordSession wrapper
func NewDiscordSession(token string) (*DiscordSession, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	return &DiscordSession{Session: session}, nil
}

// GetState returns the session state
func (d *DiscordSession) GetState() *discordgo.State {
	return d.State
}
