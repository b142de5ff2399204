package bot

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"

	"github.com/Dmetrikx/goDiscordArcade/internal/session"
)

// sendLongResponse sends long responses in chunks to respect Discord's message length limit.
// It returns the ID of the first chunk.
func (b *Bot) sendLongResponse(ctx context.Context, channelID, response string) string {
	var firstID string
	for i := 0; i < len(response); i += MaxDiscordMessageLength {
		end := i + MaxDiscordMessageLength
		if end > len(response) {
			end = len(response)
		}

		chunk := response[i:end]
		msg, err := b.session.ChannelMessageSend(channelID, chunk)
		if err != nil {
			b.logger.ErrorContext(ctx, "failed to send message chunk",
				"channel_id", channelID,
				"chunk_index", i/MaxDiscordMessageLength,
				tint.Err(err))
			continue
		}
		if firstID == "" && msg != nil {
			firstID = msg.ID
		}
	}
	return firstID
}

// channelResponder answers a text message in its channel
type channelResponder struct {
	bot       *Bot
	channelID string
	messageID string
}

func (c *channelResponder) send(ctx context.Context, r reply) string {
	var (
		msg *discordgo.Message
		err error
	)
	switch {
	case r.embed != nil:
		msg, err = c.bot.session.ChannelMessageSendEmbed(c.channelID, r.embed)
	case len(r.content) > MaxDiscordMessageLength:
		return c.bot.sendLongResponse(ctx, c.channelID, r.content)
	case r.reference && c.messageID != "":
		msg, err = c.bot.session.ChannelMessageSendReply(c.channelID, r.content, &discordgo.MessageReference{
			MessageID: c.messageID,
			ChannelID: c.channelID,
		})
	default:
		msg, err = c.bot.session.ChannelMessageSend(c.channelID, r.content)
	}
	if err != nil {
		c.bot.logger.ErrorContext(ctx, "failed to send message", "channel_id", c.channelID, tint.Err(err))
		return ""
	}
	if msg == nil {
		return ""
	}
	return msg.ID
}

// interactionResponder answers a slash invocation: the first output is the
// interaction response, the rest are followups
type interactionResponder struct {
	bot         *Bot
	interaction *discordgo.Interaction

	mu        sync.Mutex
	responded bool
}

func (i *interactionResponder) send(ctx context.Context, r reply) string {
	i.mu.Lock()
	defer i.mu.Unlock()

	content := truncate(r.content, MaxDiscordMessageLength)
	var embeds []*discordgo.MessageEmbed
	if r.embed != nil {
		embeds = []*discordgo.MessageEmbed{r.embed}
	}

	if !i.responded {
		i.responded = true
		err := i.bot.session.InteractionRespond(i.interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: content,
				Embeds:  embeds,
			},
		})
		if err != nil {
			i.bot.logger.ErrorContext(ctx, "failed to respond to interaction", tint.Err(err))
		}
		return ""
	}

	msg, err := i.bot.session.FollowupMessageCreate(i.interaction, true, &discordgo.WebhookParams{
		Content: content,
		Embeds:  embeds,
	})
	if err != nil {
		i.bot.logger.ErrorContext(ctx, "failed to send followup", tint.Err(err))
		return ""
	}
	if msg == nil {
		return ""
	}
	return msg.ID
}

// truncate cuts s to at most n bytes without splitting a rune
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "")
}

// parseMention extracts the user ID from <@123> or <@!123>
func parseMention(token string) (string, bool) {
	if !strings.HasPrefix(token, "<@") || !strings.HasSuffix(token, ">") {
		return "", false
	}
	id := strings.TrimPrefix(strings.TrimSuffix(token[2:], ">"), "!")
	if id == "" {
		return "", false
	}
	if _, err := strconv.ParseUint(id, 10, 64); err != nil {
		return "", false
	}
	return id, true
}

// mentionedUser returns the first user the request refers to
func (r *Request) mentionedUser() (Target, bool) {
	if len(r.Event.Mentions) > 0 {
		return r.Event.Mentions[0], true
	}
	for _, arg := range r.Args {
		if id, ok := parseMention(arg); ok {
			return Target{ID: id}, true
		}
	}
	return Target{}, false
}

// withoutMentions drops mention tokens from args
func withoutMentions(args []string) []string {
	out := make([]string, 0, len(args))
	for _, arg := range args {
		if _, ok := parseMention(arg); !ok {
			out = append(out, arg)
		}
	}
	return out
}

// parseAmount parses a strictly positive whole number
func parseAmount(s string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n <= 0 {
		return 0, validationError("%q is not a positive whole number.", s)
	}
	return n, nil
}

// formatRaceLobby lists the horses of a new race
func formatRaceLobby(race session.Race, prefix string) string {
	var sb strings.Builder
	sb.WriteString("🏇 **Race started!**\n")
	for i, h := range race.Horses {
		fmt.Fprintf(&sb, "%d. %s (spd:%d, sta:%d)\n", i+1, h.Name, h.Speed, h.Stamina)
	}
	fmt.Fprintf(&sb, "Place a bet with: %sbet <horse#> <amount>\n", prefix)
	fmt.Fprintf(&sb, "The race is cancelled after %s if nobody bets.", session.RaceLobbyTimeout)
	return sb.String()
}

// formatRaceResult announces the winner and every payout
func formatRaceResult(o session.Outcome) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🏁 Finished! Winner: %s\n", o.WinningHorse().Name)
	if len(o.Payouts) == 0 {
		sb.WriteString("Nobody backed the winner.")
		return sb.String()
	}

	winners := make([]string, 0, len(o.Payouts))
	for account := range o.Payouts {
		winners = append(winners, account)
	}
	sort.Strings(winners)

	sb.WriteString("Winners:")
	for _, account := range winners {
		fmt.Fprintf(&sb, "\n<@%s> +%d %s", account, o.Payouts[account], CurrencySymbol)
	}
	return sb.String()
}

// formatPrices lists market prices in symbol order
func formatPrices(prices map[string]int64) string {
	if len(prices) == 0 {
		return "The market is closed."
	}
	syms := make([]string, 0, len(prices))
	for sym := range prices {
		syms = append(syms, sym)
	}
	sort.Strings(syms)

	lines := make([]string, 0, len(syms))
	for _, sym := range syms {
		lines = append(lines, fmt.Sprintf("%s: %d %s", sym, prices[sym], CurrencySymbol))
	}
	return "📈 Stock prices:\n" + strings.Join(lines, "\n")
}
