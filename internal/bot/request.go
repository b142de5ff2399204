package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// Capability is a caller's authorization level
type Capability uint8

const (
	// CapAdmin is granted to guild administrators
	CapAdmin Capability = 1 << iota
	// CapOwner is granted to the configured bot owner
	CapOwner
)

// Has reports whether c includes every bit of want
func (c Capability) Has(want Capability) bool {
	return c&want == want
}

// Target is a user referred to by a command, usually through a mention
type Target struct {
	ID   string
	Name string
}

// Mention renders the target as a Discord mention
func (t Target) Mention() string {
	return "<@" + t.ID + ">"
}

// Event is an inbound message or slash invocation in gateway-neutral form
type Event struct {
	AuthorID    string
	AuthorName  string
	AuthorIsBot bool
	GuildID     string
	ChannelID   string
	MessageID   string
	Content     string
	Mentions    []Target

	// Permissions are the author's channel permission bits when the gateway
	// delivered them with the event
	Permissions      int64
	PermissionsKnown bool
}

// Request is one parsed command invocation
type Request struct {
	Command string
	Args    []string
	Event   Event

	out responder
}

// Scope is the key for guild-wide games: the guild, or the channel in DMs
func (r *Request) Scope() string {
	if r.Event.GuildID != "" {
		return r.Event.GuildID
	}
	return r.Event.ChannelID
}

// Author returns the caller as a Target
func (r *Request) Author() Target {
	return Target{ID: r.Event.AuthorID, Name: r.Event.AuthorName}
}

// Rest joins the arguments from index i on
func (r *Request) Rest(i int) string {
	if i >= len(r.Args) {
		return ""
	}
	return strings.Join(r.Args[i:], " ")
}

// Reply answers the caller
func (r *Request) Reply(ctx context.Context, format string, args ...any) {
	r.out.send(ctx, reply{content: fmt.Sprintf(format, args...), reference: true})
}

// Send posts to the channel without referencing the caller. It returns the
// message ID when the gateway reports one.
func (r *Request) Send(ctx context.Context, content string) string {
	return r.out.send(ctx, reply{content: content})
}

// SendEmbed posts an embed to the channel
func (r *Request) SendEmbed(ctx context.Context, embed *discordgo.MessageEmbed) {
	r.out.send(ctx, reply{embed: embed})
}

type reply struct {
	content   string
	embed     *discordgo.MessageEmbed
	reference bool
}

// responder delivers command output back to where the request came from
type responder interface {
	send(ctx context.Context, r reply) string
}
