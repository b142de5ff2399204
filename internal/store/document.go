package store

import (
	"encoding/json"
	"time"
)

// Warning is a single moderation warning issued against an account
type Warning struct {
	Issuer string    `json:"by"`
	Reason string    `json:"reason"`
	Time   time.Time `json:"time"`
}

// Account is a read-only view of everything stored for one user
type Account struct {
	ID        string
	Balance   int64
	LastClaim *time.Time
	Warnings  []Warning
	Holdings  map[string]int64
}

// Document is the persisted shape of the store.
// Sessions are never persisted; only escrowed wager funds survive a restart.
type Document struct {
	Balances  map[string]int64            `json:"balances"`
	Hourly    map[string]time.Time        `json:"hourly"`
	Warns     map[string][]Warning        `json:"warns"`
	Stocks    map[string]int64            `json:"stocks"`
	Portfolio map[string]map[string]int64 `json:"portfolio"`
	Escrow    map[string]map[string]int64 `json:"escrow"`
}

// NewDocument returns an empty document with every map allocated
func NewDocument() *Document {
	return &Document{
		Balances:  make(map[string]int64),
		Hourly:    make(map[string]time.Time),
		Warns:     make(map[string][]Warning),
		Stocks:    make(map[string]int64),
		Portfolio: make(map[string]map[string]int64),
		Escrow:    make(map[string]map[string]int64),
	}
}

// MaxImportedWarnings caps how many placeholder records a legacy warning count expands to
const MaxImportedWarnings = 100

// legacyDocument accepts the older layouts seen in existing data files:
// balances under "coins" and warnings stored as a bare count.
type legacyDocument struct {
	Balances  map[string]int64            `json:"balances"`
	Coins     map[string]int64            `json:"coins"`
	Hourly    map[string]time.Time        `json:"hourly"`
	Warns     map[string]json.RawMessage  `json:"warns"`
	Stocks    map[string]int64            `json:"stocks"`
	Portfolio map[string]map[string]int64 `json:"portfolio"`
	Holdings  map[string]map[string]int64 `json:"holdings"`
	Escrow    map[string]map[string]int64 `json:"escrow"`
}

// UnmarshalJSON normalizes legacy layouts into the current document form
func (d *Document) UnmarshalJSON(data []byte) error {
	var raw legacyDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	doc := NewDocument()
	for id, v := range raw.Coins {
		doc.Balances[id] = v
	}
	for id, v := range raw.Balances {
		doc.Balances[id] = v
	}
	for id, v := range raw.Hourly {
		doc.Hourly[id] = v
	}
	for sym, v := range raw.Stocks {
		doc.Stocks[sym] = v
	}
	for _, src := range []map[string]map[string]int64{raw.Holdings, raw.Portfolio} {
		for id, holdings := range src {
			m := make(map[string]int64, len(holdings))
			for sym, qty := range holdings {
				m[sym] = qty
			}
			doc.Portfolio[id] = m
		}
	}
	for scope, wagers := range raw.Escrow {
		m := make(map[string]int64, len(wagers))
		for id, amount := range wagers {
			m[id] = amount
		}
		doc.Escrow[scope] = m
	}

	for id, msg := range raw.Warns {
		var list []Warning
		if err := json.Unmarshal(msg, &list); err == nil {
			doc.Warns[id] = list
			continue
		}
		var count int
		if err := json.Unmarshal(msg, &count); err != nil {
			return err
		}
		count = min(count, MaxImportedWarnings)
		for i := 0; i < count; i++ {
			list = append(list, Warning{Issuer: "unknown", Reason: "imported warning"})
		}
		doc.Warns[id] = list
	}

	*d = *doc
	return nil
}
