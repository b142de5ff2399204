package market

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Dmetrikx/goDiscordArcade/internal/store"
)

// Market defaults
const (
	DefaultInterval = 5 * time.Minute
	SeedPriceMin    = 50
	SeedPriceMax    = 249
	MaxMovePercent  = 3
)

// Symbols is the fixed set of tradable instruments
var Symbols = []string{"APPL", "MSFT", "BTC", "ETH"}

// Market drives the random walk of stock prices held in the store
type Market struct {
	store    *store.Store
	logger   *slog.Logger
	interval time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a market over st. rng may be nil.
func New(st *store.Store, logger *slog.Logger, rng *rand.Rand) *Market {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Market{
		store:    st,
		logger:   logger,
		interval: DefaultInterval,
		rng:      rng,
	}
}

// IsSymbol reports whether sym is tradable
func IsSymbol(sym string) bool {
	return slices.Contains(Symbols, strings.ToUpper(sym))
}

// Seed gives every symbol without a price a random starting price
func (m *Market) Seed() map[string]int64 {
	return m.store.UpdatePrices(func(current map[string]int64) map[string]int64 {
		m.mu.Lock()
		defer m.mu.Unlock()
		for _, sym := range Symbols {
			if _, ok := current[sym]; !ok {
				current[sym] = int64(SeedPriceMin + m.rng.IntN(SeedPriceMax-SeedPriceMin+1))
			}
		}
		return current
	})
}

// Step moves each price by a uniform random percentage in [-3%, +3%]
func (m *Market) Step() map[string]int64 {
	return m.store.UpdatePrices(func(current map[string]int64) map[string]int64 {
		m.mu.Lock()
		defer m.mu.Unlock()
		next := make(map[string]int64, len(Symbols))
		for _, sym := range Symbols {
			old, ok := current[sym]
			if !ok {
				old = 100
			}
			pct := m.rng.Float64()*2*MaxMovePercent - MaxMovePercent
			next[sym] = Move(old, pct)
		}
		return next
	})
}

// Move applies a percentage change to price, rounding half away from zero and clamping to at least 1
func Move(price int64, pct float64) int64 {
	factor := decimal.NewFromInt(1).Add(decimal.NewFromFloat(pct).Div(decimal.NewFromInt(100)))
	next := decimal.NewFromInt(price).Mul(factor).Round(0).IntPart()
	if next < 1 {
		return 1
	}
	return next
}

// Run steps the market on every tick until ctx is done
func (m *Market) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prices := m.Step()
			m.logger.InfoContext(ctx, "stock prices updated", "prices", prices)
		}
	}
}
