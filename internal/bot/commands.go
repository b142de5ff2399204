package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

type handlerFunc func(ctx context.Context, req *Request) error

// command is one row of the dispatch table
type command struct {
	names   []string
	usage   string
	summary string
	run     handlerFunc
}

// commandTable lists every command in match order
func (b *Bot) commandTable() []command {
	return []command{
		{names: []string{"ping"}, summary: "Check the bot is alive", run: b.handlePing},
		{names: []string{"help"}, summary: "Show this list", run: b.handleHelp},
		{names: []string{"bal"}, usage: "[@user]", summary: "Show a balance", run: b.handleBalance},
		{names: []string{"lb"}, summary: "Top balances", run: b.handleLeaderboard},
		{names: []string{"hr", "hourly", "claim"}, summary: "Claim the hourly reward", run: b.handleHourly},
		{names: []string{"coinflip"}, usage: "<heads|tails> <amount>", summary: "Double or nothing", run: b.handleCoinflip},
		{names: []string{"stock", "stocks"}, usage: "[prices|buy <SYM> <qty>|sell <SYM> <qty>|port]", summary: "Trade on the market", run: b.handleStock},
		{names: []string{"race"}, summary: "Open a horse race", run: b.handleRace},
		{names: []string{"bet"}, usage: "<horse#> <amount>", summary: "Bet on the open race", run: b.handleBet},
		{names: []string{"startrace"}, summary: "Run the open race", run: b.handleStartRace},
		{names: []string{"quiz"}, usage: "[start|answer <text>|end|help]", summary: "Trivia", run: b.handleQuiz},
		{names: []string{"guess"}, summary: "Guess a number from 1 to 100", run: b.handleGuess},
		{names: []string{"ask"}, usage: "<question>", summary: "Ask the AI", run: b.handleAsk},
		{names: []string{"adcmd"}, usage: "<ban|kick|mute|unmute|warn|warns|editbal>", summary: "Admin commands",
			run: b.requireCapability(CapAdmin, "You need Administrator permission.", b.handleAdmin)},
		{names: []string{"owncmd"}, usage: "<shutdown|say|stats|save>", summary: "Owner commands",
			run: b.requireCapability(CapOwner, "Only the bot owner can use this command.", b.handleOwner)},
	}
}

// lookup returns the first command answering to name
func (b *Bot) lookup(name string) (command, bool) {
	for _, cmd := range b.commands {
		for _, n := range cmd.names {
			if n == name {
				return cmd, true
			}
		}
	}
	return command{}, false
}

// requireCapability wraps a privileged handler. The check runs before the
// handler, so a rejected caller never causes a side effect.
func (b *Bot) requireCapability(want Capability, denial string, next handlerFunc) handlerFunc {
	return func(ctx context.Context, req *Request) error {
		if !b.capabilities(ctx, req.Event).Has(want) {
			b.logger.WarnContext(ctx, "capability check failed",
				"command", req.Command,
				"user_id", req.Event.AuthorID,
				"guild_id", req.Event.GuildID)
			return authorizationError(denial)
		}
		return next(ctx, req)
	}
}

// subcommand pops the first argument as a lowercased subcommand name
func subcommand(req *Request) (string, *Request) {
	if len(req.Args) == 0 {
		return "", req
	}
	sub := *req
	sub.Args = req.Args[1:]
	return strings.ToLower(req.Args[0]), &sub
}

func (b *Bot) handlePing(ctx context.Context, req *Request) error {
	req.Reply(ctx, "Pong! %dms", b.session.HeartbeatLatency().Milliseconds())
	return nil
}

func (b *Bot) handleHelp(ctx context.Context, req *Request) error {
	prefix := b.config.CommandPrefix
	embed := &discordgo.MessageEmbed{
		Title: "Commands",
		Color: 0x5865F2,
	}
	for _, cmd := range b.commands {
		name := prefix + strings.Join(cmd.names, "|")
		if cmd.usage != "" {
			name += " " + cmd.usage
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  name,
			Value: cmd.summary,
		})
	}
	embed.Footer = &discordgo.MessageEmbedFooter{
		Text: fmt.Sprintf("While %sguess is running, type numbers straight into the channel.", prefix),
	}
	req.SendEmbed(ctx, embed)
	return nil
}
