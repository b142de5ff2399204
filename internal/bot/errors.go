package bot

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Dmetrikx/goDiscordArcade/internal/market"
	"github.com/Dmetrikx/goDiscordArcade/internal/session"
	"github.com/Dmetrikx/goDiscordArcade/internal/store"
)

// ErrorKind classifies why a command did not complete
type ErrorKind int

const (
	// KindValidation is a malformed or out-of-range argument
	KindValidation ErrorKind = iota
	// KindAuthorization is a failed capability check
	KindAuthorization
	// KindStateConflict is an action that is invalid for the current state
	KindStateConflict
	// KindCollaborator is a failure of Discord, storage or the completion service
	KindCollaborator
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindStateConflict:
		return "state_conflict"
	default:
		return "collaborator"
	}
}

// genericFailure is shown to users for collaborator failures
const genericFailure = "Something went wrong, please try again later."

// CommandError is a classified command failure carrying the user-visible text
type CommandError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error implements the error interface
func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error
func (e *CommandError) Unwrap() error {
	return e.Err
}

func validationError(format string, args ...any) *CommandError {
	return &CommandError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func authorizationError(msg string) *CommandError {
	return &CommandError{Kind: KindAuthorization, Message: msg}
}

func conflictError(format string, args ...any) *CommandError {
	return &CommandError{Kind: KindStateConflict, Message: fmt.Sprintf(format, args...)}
}

func collaboratorError(err error) *CommandError {
	return &CommandError{Kind: KindCollaborator, Message: genericFailure, Err: err}
}

// classify maps store and session rejections onto the error taxonomy
func classify(err error) *CommandError {
	var ce *CommandError
	if errors.As(err, &ce) {
		return ce
	}

	var cooldown *store.CooldownError
	if errors.As(err, &cooldown) {
		return &CommandError{
			Kind:    KindStateConflict,
			Message: fmt.Sprintf("You already claimed. Try again in %s.", formatWait(cooldown.Remaining)),
			Err:     err,
		}
	}

	kind, msg := KindCollaborator, genericFailure
	switch {
	case errors.Is(err, store.ErrInsufficientFunds):
		kind, msg = KindStateConflict, "You don't have enough coins."
	case errors.Is(err, store.ErrInsufficientHoldings):
		kind, msg = KindStateConflict, "You don't have enough shares."
	case errors.Is(err, store.ErrAmountTooLarge):
		kind, msg = KindValidation, "That amount is too large."
	case errors.Is(err, store.ErrInvalidAmount), errors.Is(err, session.ErrInvalidAmount):
		kind, msg = KindValidation, "Amount must be a positive whole number."
	case errors.Is(err, store.ErrUnknownSymbol):
		kind, msg = KindValidation, "Unknown symbol. Available: "+strings.Join(market.Symbols, ", ")
	case errors.Is(err, session.ErrInvalidHorse):
		kind, msg = KindValidation, "Invalid horse number."
	case errors.Is(err, session.ErrAlreadyWagered):
		kind, msg = KindStateConflict, "You already bet on this race."
	case errors.Is(err, session.ErrSessionLive):
		kind, msg = KindStateConflict, "One is already running here."
	case errors.Is(err, session.ErrNoSession):
		kind, msg = KindStateConflict, "Nothing is running here right now."
	case errors.Is(err, session.ErrNoWagers):
		kind, msg = KindStateConflict, "Nobody has bet yet."
	}
	return &CommandError{Kind: kind, Message: msg, Err: err}
}

// formatWait renders a cooldown as "Xm Ys"
func formatWait(d time.Duration) string {
	d = d.Round(time.Second)
	mins := int(d / time.Minute)
	secs := int((d % time.Minute) / time.Second)
	return fmt.Sprintf("%dm %ds", mins, secs)
}
