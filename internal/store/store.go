package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lmittmann/tint"
)

// persistTimeout bounds a single backend write
const persistTimeout = 10 * time.Second

// Options tune how the store persists
type Options struct {
	// Debounce coalesces mutations made within the window into one write.
	// Zero writes after every mutation.
	Debounce time.Duration

	// Now overrides the clock (tests)
	Now func() time.Time
}

// Store is the balance store: the only shared mutable state in the bot.
// Every method applies its change under one lock, so a read-check-write
// sequence inside a method can never interleave with another caller.
type Store struct {
	backend Backend
	logger  *slog.Logger
	opts    Options
	now     func() time.Time

	mu      sync.Mutex
	doc     *Document
	version uint64

	writeMu   sync.Mutex
	written   uint64
	suspended bool

	timerMu sync.Mutex
	timer   *time.Timer
}

// New creates a store on top of backend. Call Open before use.
func New(backend Backend, logger *slog.Logger, opts Options) *Store {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		backend: backend,
		logger:  logger,
		opts:    opts,
		now:     now,
		doc:     NewDocument(),
	}
}

// Open loads the document from the backend. A missing or unreadable document
// resets the store to empty defaults; the condition is logged, never returned.
//
// An unreadable document is never overwritten. A document that fails to decode
// is moved aside when the backend supports Quarantine; otherwise, and whenever
// the read itself fails, writes stay suspended until Resume.
func (s *Store) Open(ctx context.Context) {
	data, err := s.backend.Load(ctx)
	switch {
	case errors.Is(err, ErrNotFound):
		s.logger.InfoContext(ctx, "no stored document, starting empty")
		s.mutate(func(*Document) {})
		return
	case err != nil:
		s.logger.ErrorContext(ctx, "failed to read stored document, starting empty with writes suspended", tint.Err(err))
		s.suspend()
		return
	}

	doc := NewDocument()
	if err := json.Unmarshal(data, doc); err != nil {
		s.logger.ErrorContext(ctx, "stored document is corrupt, resetting", tint.Err(err))
		s.quarantine(ctx)
		return
	}

	s.mu.Lock()
	s.doc = doc
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "loaded stored document",
		"accounts", len(doc.Balances),
		"symbols", len(doc.Stocks))
}

func (s *Store) quarantine(ctx context.Context) {
	q, ok := s.backend.(Quarantiner)
	if !ok {
		s.logger.WarnContext(ctx, "backend cannot set the corrupt document aside, writes suspended")
		s.suspend()
		return
	}
	location, err := q.Quarantine(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to set corrupt document aside, writes suspended", tint.Err(err))
		s.suspend()
		return
	}
	s.logger.WarnContext(ctx, "corrupt document moved aside", "location", location)
	s.mutate(func(*Document) {})
}

func (s *Store) suspend() {
	s.writeMu.Lock()
	s.suspended = true
	s.writeMu.Unlock()
}

// Suspended reports whether writes are held back to protect an unreadable document
func (s *Store) Suspended() bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.suspended
}

// Resume lifts a write suspension and writes the in-memory state over
// whatever the backend holds
func (s *Store) Resume(ctx context.Context) error {
	s.writeMu.Lock()
	s.suspended = false
	s.writeMu.Unlock()
	s.logger.WarnContext(ctx, "writes resumed, stored document will be replaced")
	return s.Flush(ctx)
}

// mutate applies fn under the lock and schedules persistence
func (s *Store) mutate(fn func(doc *Document)) {
	s.mu.Lock()
	fn(s.doc)
	s.version++
	s.mu.Unlock()
	s.schedule()
}

// mutateErr is mutate for changes that may be rejected; a rejected change writes nothing
func (s *Store) mutateErr(fn func(doc *Document) error) error {
	s.mu.Lock()
	if err := fn(s.doc); err != nil {
		s.mu.Unlock()
		return err
	}
	s.version++
	s.mu.Unlock()
	s.schedule()
	return nil
}

func (s *Store) schedule() {
	if s.opts.Debounce <= 0 {
		s.persist(context.Background())
		return
	}

	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	if s.timer != nil {
		return
	}
	s.timer = time.AfterFunc(s.opts.Debounce, func() {
		s.timerMu.Lock()
		s.timer = nil
		s.timerMu.Unlock()
		s.persist(context.Background())
	})
}

// persist snapshots the document and writes it. Failures are logged and the
// in-memory state is kept; the next successful write catches the backend up.
func (s *Store) persist(ctx context.Context) error {
	s.mu.Lock()
	data, err := json.MarshalIndent(s.doc, "", "  ")
	version := s.version
	s.mu.Unlock()
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to encode document", tint.Err(err))
		return fmt.Errorf("failed to encode document: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.suspended {
		s.logger.DebugContext(ctx, "write skipped, writes are suspended", "version", version)
		return ErrWritesSuspended
	}

	// A newer snapshot already reached the backend
	if version <= s.written {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()

	if err := s.backend.Save(ctx, data); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist document", "version", version, tint.Err(err))
		return err
	}
	s.written = version
	return nil
}

// Flush writes the current state immediately, cancelling any pending debounce
func (s *Store) Flush(ctx context.Context) error {
	s.timerMu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerMu.Unlock()

	s.mu.Lock()
	s.version++
	s.mu.Unlock()
	return s.persist(ctx)
}

// Close flushes pending changes and closes the backend. A suspended store
// closes without writing.
func (s *Store) Close(ctx context.Context) error {
	flushErr := s.Flush(ctx)
	if errors.Is(flushErr, ErrWritesSuspended) {
		s.logger.WarnContext(ctx, "closing with writes suspended, in-memory changes discarded")
		flushErr = nil
	}
	if err := s.backend.Close(); err != nil {
		return err
	}
	return flushErr
}

// Get returns the balance of account, 0 if unknown
func (s *Store) Get(account string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Balances[account]
}

// Set overwrites the balance of account
func (s *Store) Set(account string, value int64) {
	s.mutate(func(doc *Document) {
		doc.Balances[account] = value
	})
}

// Add applies delta to account and returns the new balance
func (s *Store) Add(account string, delta int64) int64 {
	var balance int64
	s.mutate(func(doc *Document) {
		doc.Balances[account] = SaturatingAdd(doc.Balances[account], delta)
		balance = doc.Balances[account]
	})
	return balance
}

// Debit subtracts amount only if the balance covers it
func (s *Store) Debit(account string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	var balance int64
	err := s.mutateErr(func(doc *Document) error {
		if doc.Balances[account] < amount {
			return ErrInsufficientFunds
		}
		doc.Balances[account] -= amount
		balance = doc.Balances[account]
		return nil
	})
	return balance, err
}

// Account returns a copy of every record held for id
func (s *Store) Account(id string) Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct := Account{
		ID:       id,
		Balance:  s.doc.Balances[id],
		Warnings: append([]Warning(nil), s.doc.Warns[id]...),
		Holdings: make(map[string]int64),
	}
	if t, ok := s.doc.Hourly[id]; ok {
		acct.LastClaim = &t
	}
	for sym, qty := range s.doc.Portfolio[id] {
		acct.Holdings[sym] = qty
	}
	return acct
}

// ClaimHourly grants reward if window has passed since the last claim
func (s *Store) ClaimHourly(account string, window time.Duration, reward int64) (int64, error) {
	var balance int64
	err := s.mutateErr(func(doc *Document) error {
		now := s.now()
		if last, ok := doc.Hourly[account]; ok {
			if remaining := window - now.Sub(last); remaining > 0 {
				return &CooldownError{Remaining: remaining}
			}
		}
		doc.Balances[account] = SaturatingAdd(doc.Balances[account], reward)
		doc.Hourly[account] = now
		balance = doc.Balances[account]
		return nil
	})
	return balance, err
}

// LeaderboardEntry is one row of the leaderboard
type LeaderboardEntry struct {
	Account string
	Balance int64
}

// Leaderboard returns the top n balances, richest first
func (s *Store) Leaderboard(n int) []LeaderboardEntry {
	s.mu.Lock()
	entries := make([]LeaderboardEntry, 0, len(s.doc.Balances))
	for id, bal := range s.doc.Balances {
		entries = append(entries, LeaderboardEntry{Account: id, Balance: bal})
	}
	s.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Balance != entries[j].Balance {
			return entries[i].Balance > entries[j].Balance
		}
		return entries[i].Account < entries[j].Account
	})
	if n >= 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

// Warn appends a warning to account
func (s *Store) Warn(account, issuer, reason string) Warning {
	w := Warning{Issuer: issuer, Reason: reason, Time: s.now().UTC()}
	s.mutate(func(doc *Document) {
		doc.Warns[account] = append(doc.Warns[account], w)
	})
	return w
}

// Warnings lists warnings for account, oldest first
func (s *Store) Warnings(account string) []Warning {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Warning(nil), s.doc.Warns[account]...)
}

// Prices returns a copy of the market prices
func (s *Store) Prices() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.doc.Stocks))
	for sym, p := range s.doc.Stocks {
		out[sym] = p
	}
	return out
}

// UpdatePrices replaces prices through fn, which sees the current prices and
// returns the new ones. Prices are clamped to at least 1.
func (s *Store) UpdatePrices(fn func(current map[string]int64) map[string]int64) map[string]int64 {
	var out map[string]int64
	s.mutate(func(doc *Document) {
		current := make(map[string]int64, len(doc.Stocks))
		for sym, p := range doc.Stocks {
			current[sym] = p
		}
		next := fn(current)
		out = make(map[string]int64, len(next))
		for sym, p := range next {
			if p < 1 {
				p = 1
			}
			doc.Stocks[sym] = p
			out[sym] = p
		}
	})
	return out
}

// Holdings returns account's portfolio
func (s *Store) Holdings(account string) map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64)
	for sym, qty := range s.doc.Portfolio[account] {
		if qty > 0 {
			out[sym] = qty
		}
	}
	return out
}

// Buy purchases qty of symbol at the current price and returns the cost
func (s *Store) Buy(account, symbol string, qty int64) (int64, error) {
	symbol = strings.ToUpper(symbol)
	if qty <= 0 {
		return 0, ErrInvalidAmount
	}
	var cost int64
	err := s.mutateErr(func(doc *Document) error {
		price, ok := doc.Stocks[symbol]
		if !ok {
			return ErrUnknownSymbol
		}
		var err error
		if cost, err = checkedMul(price, qty); err != nil {
			return err
		}
		if doc.Balances[account] < cost {
			return ErrInsufficientFunds
		}
		doc.Balances[account] -= cost
		if doc.Portfolio[account] == nil {
			doc.Portfolio[account] = make(map[string]int64)
		}
		doc.Portfolio[account][symbol] = SaturatingAdd(doc.Portfolio[account][symbol], qty)
		return nil
	})
	return cost, err
}

// Sell sells qty of symbol at the current price and returns the proceeds
func (s *Store) Sell(account, symbol string, qty int64) (int64, error) {
	symbol = strings.ToUpper(symbol)
	if qty <= 0 {
		return 0, ErrInvalidAmount
	}
	var gain int64
	err := s.mutateErr(func(doc *Document) error {
		price, ok := doc.Stocks[symbol]
		if !ok {
			return ErrUnknownSymbol
		}
		if doc.Portfolio[account][symbol] < qty {
			return ErrInsufficientHoldings
		}
		var err error
		if gain, err = checkedMul(price, qty); err != nil {
			return err
		}
		doc.Portfolio[account][symbol] -= qty
		if doc.Portfolio[account][symbol] == 0 {
			delete(doc.Portfolio[account], symbol)
		}
		doc.Balances[account] = SaturatingAdd(doc.Balances[account], gain)
		return nil
	})
	return gain, err
}

// EscrowWager debits amount from account and records it as held for scope
func (s *Store) EscrowWager(scope, account string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return s.mutateErr(func(doc *Document) error {
		if doc.Balances[account] < amount {
			return ErrInsufficientFunds
		}
		doc.Balances[account] -= amount
		if doc.Escrow[scope] == nil {
			doc.Escrow[scope] = make(map[string]int64)
		}
		doc.Escrow[scope][account] = SaturatingAdd(doc.Escrow[scope][account], amount)
		return nil
	})
}

// SettleEscrow credits payouts and releases every wager held for scope
func (s *Store) SettleEscrow(scope string, payouts map[string]int64) {
	s.mutate(func(doc *Document) {
		for account, amount := range payouts {
			doc.Balances[account] = SaturatingAdd(doc.Balances[account], amount)
		}
		delete(doc.Escrow, scope)
	})
}

// RefundEscrow returns every held wager to its owner. Run at startup: any
// escrow still present belongs to a race that never resolved.
func (s *Store) RefundEscrow() map[string]map[string]int64 {
	refunded := make(map[string]map[string]int64)
	s.mutate(func(doc *Document) {
		for scope, wagers := range doc.Escrow {
			refunded[scope] = make(map[string]int64, len(wagers))
			for account, amount := range wagers {
				doc.Balances[account] = SaturatingAdd(doc.Balances[account], amount)
				refunded[scope][account] = amount
			}
		}
		doc.Escrow = make(map[string]map[string]int64)
	})
	return refunded
}

// Stats summarizes store contents for diagnostics
type Stats struct {
	Accounts        int
	TotalBalance    int64
	Symbols         int
	Warnings        int
	EscrowScopes    int
	PendingWrites   bool
	WritesSuspended bool
}

// Stats reports store contents for diagnostics
func (s *Store) Stats() Stats {
	s.mu.Lock()
	st := Stats{
		Accounts:     len(s.doc.Balances),
		Symbols:      len(s.doc.Stocks),
		EscrowScopes: len(s.doc.Escrow),
	}
	for _, b := range s.doc.Balances {
		st.TotalBalance = SaturatingAdd(st.TotalBalance, b)
	}
	for _, w := range s.doc.Warns {
		st.Warnings += len(w)
	}
	version := s.version
	s.mu.Unlock()

	s.writeMu.Lock()
	st.PendingWrites = version > s.written
	st.WritesSuspended = s.suspended
	s.writeMu.Unlock()
	return st
}
