package session

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// GuessOutcome is the response to a submitted guess
type GuessOutcome int

const (
	// GuessIgnored means the input was not a number or no game is running
	GuessIgnored GuessOutcome = iota
	// GuessCorrect means the secret was found and the game is over
	GuessCorrect
	// GuessHigher means the secret is higher than the guess
	GuessHigher
	// GuessLower means the secret is lower than the guess
	GuessLower
)

func (o GuessOutcome) String() string {
	switch o {
	case GuessCorrect:
		return "correct"
	case GuessHigher:
		return "higher"
	case GuessLower:
		return "lower"
	default:
		return "ignored"
	}
}

type guessState struct {
	id     string
	secret int
	timer  Timer
}

// StartGuess picks a secret in [GuessMin, GuessMax]. The game ends on a correct
// guess or after GuessTimeout.
func (r *Registry) StartGuess(scope string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.guesses[scope]; ok {
		return ErrSessionLive
	}

	id := uuid.NewString()
	g := &guessState{
		id:     id,
		secret: GuessMin + r.rng.IntN(GuessMax-GuessMin+1),
	}
	g.timer = r.afterFunc(GuessTimeout, func() { r.expireGuess(scope, id) })
	r.guesses[scope] = g
	return nil
}

// GuessLive reports whether scope has a running game
func (r *Registry) GuessLive(scope string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.guesses[scope]
	return ok
}

// SubmitGuess compares text with the secret. Non-numeric input and scopes
// without a game are ignored and change nothing.
func (r *Registry) SubmitGuess(scope, account, text string) GuessOutcome {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return GuessIgnored
	}

	r.mu.Lock()
	g, ok := r.guesses[scope]
	if !ok {
		r.mu.Unlock()
		return GuessIgnored
	}

	switch {
	case n < g.secret:
		r.mu.Unlock()
		return GuessHigher
	case n > g.secret:
		r.mu.Unlock()
		return GuessLower
	}

	g.timer.Stop()
	delete(r.guesses, scope)
	r.mu.Unlock()

	r.store.Add(account, GuessReward)
	r.logger.Info("guess game won", "scope", scope, "user_id", account)
	return GuessCorrect
}

func (r *Registry) expireGuess(scope, id string) {
	r.mu.Lock()
	g, ok := r.guesses[scope]
	if !ok || g.id != id {
		r.mu.Unlock()
		return
	}
	delete(r.guesses, scope)
	hook := r.hooks.GuessExpired
	r.mu.Unlock()

	r.logger.Info("guess game expired", "scope", scope)
	if hook != nil {
		hook(scope, g.secret)
	}
}
