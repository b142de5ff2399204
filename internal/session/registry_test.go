package session

import (
	"context"
	"io"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dmetrikx/goDiscordArcade/internal/store"
)

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

// fakeScheduler records timers instead of starting them
type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{d: d, f: f}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) last() *fakeTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timers[len(s.timers)-1]
}

// fireAll runs every timer that has not been stopped
func (s *fakeScheduler) fireAll() {
	s.mu.Lock()
	timers := append([]*fakeTimer(nil), s.timers...)
	s.mu.Unlock()
	for _, t := range timers {
		if !t.stopped {
			t.stopped = true
			t.f()
		}
	}
}

func newTestRegistry(t *testing.T, opts Options) (*Registry, *store.Store, *fakeScheduler) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.New(store.NewMemoryBackend(nil), logger, store.Options{})
	st.Open(context.Background())

	sched := &fakeScheduler{}
	opts.AfterFunc = sched.AfterFunc
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(7, 11))
	}
	return NewRegistry(st, logger, opts), st, sched
}

// oneFastHorse guarantees the "Fast" horse wins every race
var oneFastHorse = []Horse{
	{Name: "Fast", Speed: 100, Stamina: 0},
	{Name: "Slow A", Speed: 1, Stamina: 0},
	{Name: "Slow B", Speed: 1, Stamina: 0},
}

func horseNumber(t *testing.T, race Race, name string) int {
	t.Helper()
	for i, h := range race.Horses {
		if h.Name == name {
			return i + 1
		}
	}
	t.Fatalf("horse %q not in race", name)
	return 0
}

func TestStartRaceDrawsDistinctHorses(t *testing.T) {
	reg, _, sched := newTestRegistry(t, Options{})

	race, err := reg.StartRace("guild-1")
	require.NoError(t, err)
	require.Len(t, race.Horses, RaceFieldSize)

	seen := map[string]bool{}
	for _, h := range race.Horses {
		assert.False(t, seen[h.Name], "horse %q drawn twice", h.Name)
		seen[h.Name] = true
	}
	assert.Equal(t, RaceLobbyTimeout, sched.last().d)
}

func TestRaceWagerAndPayoutScenario(t *testing.T) {
	reg, st, _ := newTestRegistry(t, Options{Horses: oneFastHorse})
	st.Set("A", 100)

	race, err := reg.StartRace("guild-1")
	require.NoError(t, err)
	fast := horseNumber(t, race, "Fast")

	_, err = reg.PlaceWager("guild-1", "A", fast, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(50), st.Get("A"))

	outcome, err := reg.ResolveRace("guild-1")
	require.NoError(t, err)
	assert.Equal(t, fast, outcome.Winner)
	assert.Equal(t, "Fast", outcome.WinningHorse().Name)
	assert.Equal(t, map[string]int64{"A": 100}, outcome.Payouts)
	assert.Equal(t, int64(150), st.Get("A"))

	_, ok := reg.CurrentRace("guild-1")
	assert.False(t, ok, "race is destroyed after resolution")
}

func TestResolveRacePaysOnlyWinners(t *testing.T) {
	reg, st, _ := newTestRegistry(t, Options{Horses: oneFastHorse})
	for _, acct := range []string{"A", "B", "C", "D"} {
		st.Set(acct, 100)
	}

	race, err := reg.StartRace("guild-1")
	require.NoError(t, err)
	fast := horseNumber(t, race, "Fast")
	slow := horseNumber(t, race, "Slow A")

	_, err = reg.PlaceWager("guild-1", "A", fast, 10)
	require.NoError(t, err)
	_, err = reg.PlaceWager("guild-1", "B", fast, 30)
	require.NoError(t, err)
	_, err = reg.PlaceWager("guild-1", "C", slow, 40)
	require.NoError(t, err)

	outcome, err := reg.ResolveRace("guild-1")
	require.NoError(t, err)

	var paid, staked int64
	for _, v := range outcome.Payouts {
		paid += v
	}
	for _, w := range outcome.Race.Wagers {
		staked += w.Amount
	}
	assert.LessOrEqual(t, paid, staked*RacePayoutFactor)

	assert.Equal(t, int64(110), st.Get("A"))
	assert.Equal(t, int64(130), st.Get("B"))
	assert.Equal(t, int64(60), st.Get("C"))
	assert.Equal(t, int64(100), st.Get("D"), "account without a wager is unaffected")
	assert.Zero(t, st.Stats().EscrowScopes)
}

// gatedBackend holds every Save until the gate opens
type gatedBackend struct {
	*store.MemoryBackend

	mu      sync.Mutex
	gate    chan struct{}
	entered chan struct{}
}

func (g *gatedBackend) hold() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gate = make(chan struct{})
	g.entered = make(chan struct{}, 16)
}

func (g *gatedBackend) release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	close(g.gate)
	g.gate = nil
}

func (g *gatedBackend) Save(ctx context.Context, data []byte) error {
	g.mu.Lock()
	gate, entered := g.gate, g.entered
	g.mu.Unlock()
	if gate != nil {
		entered <- struct{}{}
		<-gate
	}
	return g.MemoryBackend.Save(ctx, data)
}

func TestSlowSettlementDoesNotBlockRegistry(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	backend := &gatedBackend{MemoryBackend: store.NewMemoryBackend(nil)}
	st := store.New(backend, logger, store.Options{})
	st.Open(context.Background())
	sched := &fakeScheduler{}
	reg := NewRegistry(st, logger, Options{
		Horses:    oneFastHorse,
		Rand:      rand.New(rand.NewPCG(7, 11)),
		AfterFunc: sched.AfterFunc,
	})

	st.Set("A", 100)
	race, err := reg.StartRace("guild-1")
	require.NoError(t, err)
	_, err = reg.PlaceWager("guild-1", "A", horseNumber(t, race, "Fast"), 10)
	require.NoError(t, err)

	backend.hold()
	resolved := make(chan error, 1)
	go func() {
		_, err := reg.ResolveRace("guild-1")
		resolved <- err
	}()
	<-backend.entered

	// The payout write is stuck in the backend; the registry stays usable
	started := make(chan error, 2)
	go func() {
		_, err := reg.StartRace("guild-2")
		started <- err
	}()
	go func() {
		_, err := reg.StartRace("guild-1")
		started <- err
	}()
	for i := 0; i < 2; i++ {
		select {
		case err := <-started:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("registry blocked behind a store write")
		}
	}

	backend.release()
	require.NoError(t, <-resolved)
	assert.Equal(t, int64(110), st.Get("A"))

	// The new race in the same scope keeps its own escrow entry
	st.Set("B", 100)
	next, ok := reg.CurrentRace("guild-1")
	require.True(t, ok)
	_, err = reg.PlaceWager("guild-1", "B", 1, 25)
	require.NoError(t, err)
	assert.NotEqual(t, race.ID, next.ID)
	assert.Equal(t, 1, st.Stats().EscrowScopes)
}

func TestResolveRaceTieGoesToFirstHorse(t *testing.T) {
	even := []Horse{
		{Name: "One", Speed: 5},
		{Name: "Two", Speed: 5},
		{Name: "Three", Speed: 5},
	}
	reg, st, _ := newTestRegistry(t, Options{Horses: even})
	st.Set("A", 10)

	_, err := reg.StartRace("guild-1")
	require.NoError(t, err)
	_, err = reg.PlaceWager("guild-1", "A", 1, 10)
	require.NoError(t, err)

	outcome, err := reg.ResolveRace("guild-1")
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Winner)
	assert.Equal(t, []int{5, 5, 5}, outcome.Scores)
}

func TestSecondStartRaceIsRejected(t *testing.T) {
	reg, st, _ := newTestRegistry(t, Options{})
	st.Set("A", 100)

	first, err := reg.StartRace("guild-1")
	require.NoError(t, err)
	_, err = reg.PlaceWager("guild-1", "A", 1, 25)
	require.NoError(t, err)

	_, err = reg.StartRace("guild-1")
	assert.ErrorIs(t, err, ErrSessionLive)

	current, ok := reg.CurrentRace("guild-1")
	require.True(t, ok)
	assert.Equal(t, first.ID, current.ID)
	assert.Len(t, current.Wagers, 1)

	// Other scopes are independent
	_, err = reg.StartRace("guild-2")
	assert.NoError(t, err)
}

func TestPlaceWagerRejections(t *testing.T) {
	reg, st, _ := newTestRegistry(t, Options{})
	st.Set("A", 100)

	_, err := reg.PlaceWager("guild-1", "A", 1, 10)
	assert.ErrorIs(t, err, ErrNoSession)

	_, err = reg.StartRace("guild-1")
	require.NoError(t, err)

	tests := []struct {
		name   string
		horse  int
		amount int64
		want   error
	}{
		{name: "horse zero", horse: 0, amount: 10, want: ErrInvalidHorse},
		{name: "horse past field", horse: RaceFieldSize + 1, amount: 10, want: ErrInvalidHorse},
		{name: "zero amount", horse: 1, amount: 0, want: ErrInvalidAmount},
		{name: "negative amount", horse: 1, amount: -5, want: ErrInvalidAmount},
		{name: "more than balance", horse: 1, amount: 101, want: store.ErrInsufficientFunds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reg.PlaceWager("guild-1", "A", tt.horse, tt.amount)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, int64(100), st.Get("A"))
		})
	}

	_, err = reg.PlaceWager("guild-1", "A", 2, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(0), st.Get("A"))

	st.Set("A", 50)
	_, err = reg.PlaceWager("guild-1", "A", 3, 10)
	assert.ErrorIs(t, err, ErrAlreadyWagered)
	assert.Equal(t, int64(50), st.Get("A"))
}

func TestResolveRaceRejections(t *testing.T) {
	reg, _, _ := newTestRegistry(t, Options{})

	_, err := reg.ResolveRace("guild-1")
	assert.ErrorIs(t, err, ErrNoSession)

	_, err = reg.StartRace("guild-1")
	require.NoError(t, err)
	_, err = reg.ResolveRace("guild-1")
	assert.ErrorIs(t, err, ErrNoWagers)
}

func TestRaceExpiresWithoutWagers(t *testing.T) {
	var expired []Race
	reg, _, sched := newTestRegistry(t, Options{})
	reg.SetHooks(Hooks{RaceExpired: func(scope string, r Race) { expired = append(expired, r) }})

	race, err := reg.StartRace("guild-1")
	require.NoError(t, err)
	reg.SetRaceMessage("guild-1", race.ID, "chan-1", "msg-1")

	sched.fireAll()

	require.Len(t, expired, 1)
	assert.Equal(t, race.ID, expired[0].ID)
	assert.Equal(t, "chan-1", expired[0].ChannelID)
	assert.Equal(t, "msg-1", expired[0].MessageID)
	_, ok := reg.CurrentRace("guild-1")
	assert.False(t, ok)

	_, err = reg.StartRace("guild-1")
	assert.NoError(t, err, "a new race can start after expiry")
}

func TestRaceWithWagersSurvivesLobbyTimeout(t *testing.T) {
	var expired int
	reg, st, sched := newTestRegistry(t, Options{})
	reg.SetHooks(Hooks{RaceExpired: func(string, Race) { expired++ }})
	st.Set("A", 10)

	_, err := reg.StartRace("guild-1")
	require.NoError(t, err)
	_, err = reg.PlaceWager("guild-1", "A", 1, 10)
	require.NoError(t, err)

	sched.fireAll()
	assert.Zero(t, expired)
	_, ok := reg.CurrentRace("guild-1")
	assert.True(t, ok)
}

func TestStaleRaceTimerLeavesNewRaceAlone(t *testing.T) {
	var expired int
	reg, st, sched := newTestRegistry(t, Options{})
	reg.SetHooks(Hooks{RaceExpired: func(string, Race) { expired++ }})
	st.Set("A", 10)

	_, err := reg.StartRace("guild-1")
	require.NoError(t, err)
	oldTimer := sched.last()
	_, err = reg.PlaceWager("guild-1", "A", 1, 10)
	require.NoError(t, err)
	_, err = reg.ResolveRace("guild-1")
	require.NoError(t, err)

	second, err := reg.StartRace("guild-1")
	require.NoError(t, err)

	// The old timer fires late, after its race was replaced
	oldTimer.f()

	current, ok := reg.CurrentRace("guild-1")
	require.True(t, ok)
	assert.Equal(t, second.ID, current.ID)
	assert.Zero(t, expired)
}

func TestConcurrentStartRaceRegistersOnce(t *testing.T) {
	reg, _, _ := newTestRegistry(t, Options{})

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := reg.StartRace("guild-1"); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestQuizScenario(t *testing.T) {
	reg, st, _ := newTestRegistry(t, Options{Questions: []Question{{Prompt: "Capital of France?", Answer: "paris"}}})

	q, err := reg.StartQuiz("guild-1")
	require.NoError(t, err)
	assert.Equal(t, "Capital of France?", q.Prompt)

	_, err = reg.StartQuiz("guild-1")
	assert.ErrorIs(t, err, ErrSessionLive)

	res, err := reg.AnswerQuiz("guild-1", "B", "Paris")
	require.NoError(t, err)
	assert.True(t, res.Correct)
	assert.Equal(t, int64(QuizReward), st.Get("B"))

	res, err = reg.AnswerQuiz("guild-1", "C", "london")
	require.NoError(t, err)
	assert.False(t, res.Correct)
	assert.Equal(t, int64(0), st.Get("C"))

	board, err := reg.EndQuiz("guild-1")
	require.NoError(t, err)
	assert.Equal(t, []Score{{Account: "B", Correct: 1}}, board)

	_, err = reg.EndQuiz("guild-1")
	assert.ErrorIs(t, err, ErrNoSession)
	_, err = reg.AnswerQuiz("guild-1", "B", "paris")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestQuizScoreboardOrdering(t *testing.T) {
	reg, _, _ := newTestRegistry(t, Options{Questions: []Question{{Prompt: "2+2?", Answer: "4"}}})
	_, err := reg.StartQuiz("guild-1")
	require.NoError(t, err)

	for _, acct := range []string{"zed", "amy", "zed", "bob", "amy", "zed"} {
		_, err := reg.AnswerQuiz("guild-1", acct, " 4 ")
		require.NoError(t, err)
	}

	board, err := reg.EndQuiz("guild-1")
	require.NoError(t, err)
	assert.Equal(t, []Score{{"zed", 3}, {"amy", 2}, {"bob", 1}}, board)
}

// findSecret plays the guessing game by bisection
func findSecret(t *testing.T, reg *Registry, scope string) int {
	t.Helper()
	lo, hi := GuessMin, GuessMax
	for lo < hi {
		mid := (lo + hi) / 2
		switch reg.SubmitGuess(scope, "guesser", strconv.Itoa(mid)) {
		case GuessHigher:
			lo = mid + 1
		case GuessLower:
			hi = mid - 1
		case GuessCorrect:
			return mid
		default:
			t.Fatalf("unexpected ignored guess %d", mid)
		}
	}
	return lo
}

func TestGuessGame(t *testing.T) {
	reg, st, sched := newTestRegistry(t, Options{})

	require.NoError(t, reg.StartGuess("chan-1"))
	assert.ErrorIs(t, reg.StartGuess("chan-1"), ErrSessionLive)
	assert.Equal(t, GuessTimeout, sched.last().d)

	assert.Equal(t, GuessIgnored, reg.SubmitGuess("chan-1", "A", "banana"))
	assert.Equal(t, GuessIgnored, reg.SubmitGuess("chan-2", "A", "50"))
	assert.True(t, reg.GuessLive("chan-1"), "ignored input leaves the game running")

	secret := findSecret(t, reg, "chan-1")
	if reg.GuessLive("chan-1") {
		// bisection narrowed to one value without hitting it exactly
		assert.Equal(t, GuessCorrect, reg.SubmitGuess("chan-1", "A", strconv.Itoa(secret)))
		assert.Equal(t, int64(GuessReward), st.Get("A"))
	} else {
		assert.Equal(t, int64(GuessReward), st.Get("guesser"))
	}

	assert.False(t, reg.GuessLive("chan-1"))
	assert.True(t, sched.last().stopped, "timer stopped on a correct guess")
	assert.Equal(t, GuessIgnored, reg.SubmitGuess("chan-1", "A", strconv.Itoa(secret)))
}

func TestGuessGameExpires(t *testing.T) {
	var revealed []int
	reg, _, sched := newTestRegistry(t, Options{})
	reg.SetHooks(Hooks{GuessExpired: func(scope string, secret int) { revealed = append(revealed, secret) }})

	require.NoError(t, reg.StartGuess("chan-1"))
	sched.fireAll()

	require.Len(t, revealed, 1)
	assert.GreaterOrEqual(t, revealed[0], GuessMin)
	assert.LessOrEqual(t, revealed[0], GuessMax)
	assert.False(t, reg.GuessLive("chan-1"))
	assert.NoError(t, reg.StartGuess("chan-1"))
}

func TestCloseStopsTimers(t *testing.T) {
	reg, _, sched := newTestRegistry(t, Options{})
	_, err := reg.StartRace("guild-1")
	require.NoError(t, err)
	require.NoError(t, reg.StartGuess("chan-1"))
	_, err = reg.StartQuiz("guild-1")
	require.NoError(t, err)
	assert.Equal(t, 3, reg.Live().Total())

	reg.Close()
	assert.Equal(t, 0, reg.Live().Total())
	for _, tm := range sched.timers {
		assert.True(t, tm.stopped)
	}
}
