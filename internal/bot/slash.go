package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"

	"github.com/Dmetrikx/goDiscordArcade/internal/market"
)

// interactionHandler routes slash invocations through the command table
func (b *Bot) interactionHandler(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	ctx := context.Background()
	req := b.requestFromInteraction(i.Interaction)
	defer b.recoverPanic(ctx, req.Event)

	if req.Event.AuthorIsBot {
		return
	}
	b.dispatch(ctx, req)
}

// requestFromInteraction converts a slash invocation into the same request
// shape a prefixed message produces
func (b *Bot) requestFromInteraction(i *discordgo.Interaction) *Request {
	data := i.ApplicationCommandData()

	ev := Event{
		GuildID:   i.GuildID,
		ChannelID: i.ChannelID,
	}
	user := i.User
	if i.Member != nil {
		ev.Permissions = i.Member.Permissions
		ev.PermissionsKnown = true
		if i.Member.User != nil {
			user = i.Member.User
		}
	}
	if user != nil {
		ev.AuthorID = user.ID
		ev.AuthorName = user.Username
		ev.AuthorIsBot = user.Bot
	}

	args := flattenOptions(data.Options, data.Resolved, &ev.Mentions)
	ev.Content = strings.TrimSpace("/" + data.Name + " " + strings.Join(args, " "))

	return &Request{
		Command: strings.ToLower(data.Name),
		Args:    args,
		Event:   ev,
		out:     &interactionResponder{bot: b, interaction: i},
	}
}

// flattenOptions turns nested options into positional arguments: subcommand
// names first, then their values in declaration order
func flattenOptions(opts []*discordgo.ApplicationCommandInteractionDataOption, resolved *discordgo.ApplicationCommandInteractionDataResolved, mentions *[]Target) []string {
	var args []string
	for _, opt := range opts {
		switch opt.Type {
		case discordgo.ApplicationCommandOptionSubCommand, discordgo.ApplicationCommandOptionSubCommandGroup:
			args = append(args, opt.Name)
			args = append(args, flattenOptions(opt.Options, resolved, mentions)...)
		case discordgo.ApplicationCommandOptionUser:
			id := fmt.Sprint(opt.Value)
			t := Target{ID: id}
			if resolved != nil && resolved.Users[id] != nil {
				t.Name = resolved.Users[id].Username
			}
			*mentions = append(*mentions, t)
			args = append(args, t.Mention())
		default:
			args = append(args, optionString(opt.Value))
		}
	}
	return args
}

func optionString(v interface{}) string {
	switch v := v.(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

var minOne = 1.0

// slashCommands mirrors the ordinary prefix commands
func slashCommands() []*discordgo.ApplicationCommand {
	symbolChoices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(market.Symbols))
	for _, sym := range market.Symbols {
		symbolChoices = append(symbolChoices, &discordgo.ApplicationCommandOptionChoice{Name: sym, Value: sym})
	}
	trade := func(name, desc string) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        name,
			Description: desc,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "symbol", Description: "Stock symbol", Required: true, Choices: symbolChoices},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "qty", Description: "Quantity", Required: true, MinValue: &minOne},
			},
		}
	}
	sub := func(name, desc string) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionSubCommand, Name: name, Description: desc}
	}

	return []*discordgo.ApplicationCommand{
		{Name: "ping", Description: "Check the bot is alive"},
		{Name: "help", Description: "List commands"},
		{Name: "bal", Description: "Show a balance", Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "Whose balance"},
		}},
		{Name: "lb", Description: "Top balances"},
		{Name: "hourly", Description: "Claim the hourly reward"},
		{Name: "coinflip", Description: "Double or nothing", Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionString, Name: "side", Description: "heads or tails", Required: true, Choices: []*discordgo.ApplicationCommandOptionChoice{
				{Name: "heads", Value: "heads"},
				{Name: "tails", Value: "tails"},
			}},
			{Type: discordgo.ApplicationCommandOptionInteger, Name: "amount", Description: "Stake", Required: true, MinValue: &minOne},
		}},
		{Name: "stock", Description: "Trade on the market", Options: []*discordgo.ApplicationCommandOption{
			sub("prices", "Current prices"),
			trade("buy", "Buy shares"),
			trade("sell", "Sell shares"),
			sub("port", "Your portfolio"),
		}},
		{Name: "race", Description: "Open a horse race"},
		{Name: "bet", Description: "Bet on the open race", Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionInteger, Name: "horse", Description: "Horse number", Required: true, MinValue: &minOne},
			{Type: discordgo.ApplicationCommandOptionInteger, Name: "amount", Description: "Stake", Required: true, MinValue: &minOne},
		}},
		{Name: "startrace", Description: "Run the open race"},
		{Name: "quiz", Description: "Trivia", Options: []*discordgo.ApplicationCommandOption{
			sub("start", "Ask a question"),
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "answer", Description: "Answer the question", Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "text", Description: "Your answer", Required: true},
			}},
			sub("end", "Close the quiz and show scores"),
		}},
		{Name: "guess", Description: "Guess a number from 1 to 100"},
		{Name: "ask", Description: "Ask the AI", Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionString, Name: "question", Description: "Your question", Required: true},
		}},
	}
}

// registerSlashCommands creates the global slash commands. Failures are logged.
func (b *Bot) registerSlashCommands(ctx context.Context, appID string) {
	for _, cmd := range slashCommands() {
		if _, err := b.session.ApplicationCommandCreate(appID, "", cmd); err != nil {
			b.logger.ErrorContext(ctx, "failed to register slash command",
				"command", cmd.Name,
				tint.Err(err))
			continue
		}
		b.logger.DebugContext(ctx, "registered slash command", "command", cmd.Name)
	}
}
