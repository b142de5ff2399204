package bot

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Dmetrikx/goDiscordArcade/internal/market"
	"github.com/Dmetrikx/goDiscordArcade/internal/store"
)

func (b *Bot) handleBalance(ctx context.Context, req *Request) error {
	target, ok := req.mentionedUser()
	if !ok {
		target = req.Author()
	}
	req.Reply(ctx, "%s has %d %s", target.Mention(), b.store.Get(target.ID), CurrencySymbol)
	return nil
}

func (b *Bot) handleLeaderboard(ctx context.Context, req *Request) error {
	top := b.store.Leaderboard(LeaderboardSize)
	if len(top) == 0 {
		req.Reply(ctx, "No balances yet.")
		return nil
	}

	lines := make([]string, 0, len(top))
	for i, e := range top {
		lines = append(lines, fmt.Sprintf("#%d <@%s>: %d %s", i+1, e.Account, e.Balance, CurrencySymbol))
	}
	req.Send(ctx, "🏆 Leaderboard:\n"+strings.Join(lines, "\n"))
	return nil
}

func (b *Bot) handleHourly(ctx context.Context, req *Request) error {
	reward := int64(HourlyRewardMin + b.randIntN(HourlyRewardMax-HourlyRewardMin+1))
	balance, err := b.store.ClaimHourly(req.Event.AuthorID, HourlyWindow, reward)
	if err != nil {
		return err
	}
	req.Reply(ctx, "You received %d %s! Balance: %d", reward, CurrencySymbol, balance)
	return nil
}

// coinSide normalizes heads/tails/h/t
func coinSide(s string) (string, bool) {
	switch strings.ToLower(s) {
	case "heads", "h":
		return "heads", true
	case "tails", "t":
		return "tails", true
	}
	return "", false
}

func (b *Bot) handleCoinflip(ctx context.Context, req *Request) error {
	if len(req.Args) < 2 {
		return validationError("Usage: %scoinflip <heads|tails> <amount>", b.config.CommandPrefix)
	}
	pick, ok := coinSide(req.Args[0])
	if !ok {
		return validationError("Pick heads or tails.")
	}
	amount, err := parseAmount(req.Args[1])
	if err != nil {
		return err
	}

	// Stake is taken before the flip; a win pays it back doubled
	if _, err := b.store.Debit(req.Event.AuthorID, amount); err != nil {
		return err
	}

	result := "tails"
	if b.randIntN(2) == 0 {
		result = "heads"
	}
	if result == pick {
		b.store.Add(req.Event.AuthorID, store.SaturatingMul(amount, 2))
		req.Reply(ctx, "🪙 %s! You win +%d %s", result, amount, CurrencySymbol)
		return nil
	}
	req.Reply(ctx, "🪙 %s! You lose %d %s", result, amount, CurrencySymbol)
	return nil
}

func (b *Bot) handleStock(ctx context.Context, req *Request) error {
	sub, req := subcommand(req)
	switch sub {
	case "", "prices":
		req.Reply(ctx, "%s", formatPrices(b.store.Prices()))
		return nil
	case "buy", "sell":
		return b.handleTrade(ctx, sub, req)
	case "port", "portfolio":
		return b.handlePortfolio(ctx, req)
	default:
		return validationError("Usage: %sstock [prices|buy <SYM> <qty>|sell <SYM> <qty>|port]", b.config.CommandPrefix)
	}
}

func (b *Bot) handleTrade(ctx context.Context, side string, req *Request) error {
	if len(req.Args) < 2 {
		return validationError("Usage: %sstock %s <SYM> <qty>", b.config.CommandPrefix, side)
	}
	sym := strings.ToUpper(req.Args[0])
	if !market.IsSymbol(sym) {
		return validationError("Unknown symbol. Available: %s", strings.Join(market.Symbols, ", "))
	}
	qty, err := parseAmount(req.Args[1])
	if err != nil {
		return err
	}

	if side == "buy" {
		cost, err := b.store.Buy(req.Event.AuthorID, sym, qty)
		if err != nil {
			return err
		}
		req.Reply(ctx, "Bought %d %s for %d %s", qty, sym, cost, CurrencySymbol)
		return nil
	}

	gain, err := b.store.Sell(req.Event.AuthorID, sym, qty)
	if err != nil {
		return err
	}
	req.Reply(ctx, "Sold %d %s for %d %s", qty, sym, gain, CurrencySymbol)
	return nil
}

func (b *Bot) handlePortfolio(ctx context.Context, req *Request) error {
	holdings := b.store.Holdings(req.Event.AuthorID)
	if len(holdings) == 0 {
		req.Reply(ctx, "Your portfolio is empty.")
		return nil
	}

	syms := make([]string, 0, len(holdings))
	for sym := range holdings {
		syms = append(syms, sym)
	}
	sort.Strings(syms)

	prices := b.store.Prices()
	var worth int64
	lines := make([]string, 0, len(syms))
	for _, sym := range syms {
		lines = append(lines, fmt.Sprintf("%s: %d", sym, holdings[sym]))
		worth = store.SaturatingAdd(worth, store.SaturatingMul(holdings[sym], prices[sym]))
	}
	req.Reply(ctx, "📦 Portfolio:\n%s\nValue: %d %s", strings.Join(lines, "\n"), worth, CurrencySymbol)
	return nil
}
