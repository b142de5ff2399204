// Package session holds the transient per-scope games: horse races, quizzes
// and number guessing. Sessions live only in memory and are lost on restart.
package session

import (
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/Dmetrikx/goDiscordArcade/internal/store"
)

// Session timeouts and rewards
const (
	RaceLobbyTimeout = 30 * time.Second
	GuessTimeout     = 60 * time.Second
	QuizReward       = 20
	GuessReward      = 50
	GuessMin         = 1
	GuessMax         = 100
	RaceFieldSize    = 3
	RacePayoutFactor = 2
)

var (
	// ErrSessionLive is returned when starting a session while one is already live in the scope
	ErrSessionLive = errors.New("a session is already running here")

	// ErrNoSession is returned when the scope has no live session of the requested kind
	ErrNoSession = errors.New("no session is running here")

	// ErrInvalidHorse is returned for a horse number outside the field
	ErrInvalidHorse = errors.New("invalid horse")

	// ErrInvalidAmount is returned for non-positive wagers
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrAlreadyWagered is returned when an account bets twice on one race
	ErrAlreadyWagered = errors.New("already wagered on this race")

	// ErrNoWagers is returned when resolving a race nobody bet on
	ErrNoWagers = errors.New("no wagers placed")
)

// Timer is the subset of *time.Timer the registry needs
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Hooks are notified when a timer ends a session. They run outside the registry lock.
type Hooks struct {
	RaceExpired  func(scope string, race Race)
	GuessExpired func(scope string, secret int)
}

// Options configure a Registry
type Options struct {
	Horses    []Horse
	Questions []Question
	Rand      *rand.Rand
	AfterFunc AfterFunc
	Hooks     Hooks
}

// Registry owns every live session, keyed by scope. One mutex guards all
// three maps so "is a session live" and "register it" happen as one step.
type Registry struct {
	store     *store.Store
	logger    *slog.Logger
	horses    []Horse
	questions []Question
	afterFunc AfterFunc
	hooks     Hooks

	mu      sync.Mutex
	rng     *rand.Rand
	races   map[string]*raceState
	quizzes map[string]*quizState
	guesses map[string]*guessState
}

// NewRegistry creates an empty registry backed by st
func NewRegistry(st *store.Store, logger *slog.Logger, opts Options) *Registry {
	r := &Registry{
		store:     st,
		logger:    logger,
		horses:    opts.Horses,
		questions: opts.Questions,
		afterFunc: opts.AfterFunc,
		hooks:     opts.Hooks,
		rng:       opts.Rand,
		races:     make(map[string]*raceState),
		quizzes:   make(map[string]*quizState),
		guesses:   make(map[string]*guessState),
	}
	if len(r.horses) == 0 {
		r.horses = DefaultHorses
	}
	if len(r.questions) == 0 {
		r.questions = DefaultQuestions
	}
	if r.afterFunc == nil {
		r.afterFunc = realAfterFunc
	}
	if r.rng == nil {
		r.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return r
}

// SetHooks replaces the expiry hooks. Call before any session starts.
func (r *Registry) SetHooks(h Hooks) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = h
}

// Counts reports the number of live sessions per kind
type Counts struct {
	Races   int
	Quizzes int
	Guesses int
}

// Total is the sum of all live sessions
func (c Counts) Total() int {
	return c.Races + c.Quizzes + c.Guesses
}

// Live returns how many sessions are running
func (r *Registry) Live() Counts {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Counts{
		Races:   len(r.races),
		Quizzes: len(r.quizzes),
		Guesses: len(r.guesses),
	}
}

// Close stops every pending timer and drops all sessions. Escrowed wagers stay
// in the store and are refunded on the next start.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for scope, race := range r.races {
		race.timer.Stop()
		delete(r.races, scope)
	}
	for scope, g := range r.guesses {
		g.timer.Stop()
		delete(r.guesses, scope)
	}
	for scope := range r.quizzes {
		delete(r.quizzes, scope)
	}
}
