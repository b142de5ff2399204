package store

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInsufficientFunds is returned when a debit would take a balance below the requested amount
	ErrInsufficientFunds = errors.New("insufficient balance")

	// ErrInvalidAmount is returned for zero or negative amounts and quantities
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrAmountTooLarge is an ErrInvalidAmount whose total would not fit in a balance
	ErrAmountTooLarge = fmt.Errorf("%w: total too large", ErrInvalidAmount)

	// ErrUnknownSymbol is returned for instruments outside the market
	ErrUnknownSymbol = errors.New("unknown symbol")

	// ErrInsufficientHoldings is returned when selling more than is held
	ErrInsufficientHoldings = errors.New("insufficient holdings")

	// ErrNotFound is returned by a Backend that has no stored document yet
	ErrNotFound = errors.New("document not found")

	// ErrWritesSuspended is returned by Flush while the stored document is protected
	ErrWritesSuspended = errors.New("writes suspended: stored document could not be read")
)

// CooldownError reports a time-gated reward that cannot be claimed yet
type CooldownError struct {
	Remaining time.Duration
}

// Error implements the error interface
func (e *CooldownError) Error() string {
	return fmt.Sprintf("reward on cooldown for another %s", e.Remaining.Round(time.Second))
}
