package session

import (
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/Dmetrikx/goDiscordArcade/internal/store"
)

// Horse is a racer. A horse's score in a race is Speed plus a random bonus in [0, Stamina].
type Horse struct {
	Name    string
	Speed   int
	Stamina int
}

// DefaultHorses is the pool races draw from
var DefaultHorses = []Horse{
	{Name: "🐎 White Mare", Speed: 7, Stamina: 8},
	{Name: "🏇 Brown Bess", Speed: 8, Stamina: 6},
	{Name: "🐴 Wild Mustang", Speed: 9, Stamina: 5},
	{Name: "🦄 Unicorn", Speed: 6, Stamina: 9},
	{Name: "🐎 Warhorse", Speed: 7, Stamina: 7},
}

// Wager is one account's bet. Horse is the 1-based number shown to players.
type Wager struct {
	Horse  int
	Amount int64
}

// Race is a snapshot of a race lobby
type Race struct {
	ID        string
	Scope     string
	Horses    []Horse
	Wagers    map[string]Wager
	ChannelID string
	MessageID string
	CreatedAt time.Time
}

// Outcome is the result of a resolved race
type Outcome struct {
	Race    Race
	Scores  []int
	Winner  int // 1-based
	Payouts map[string]int64
}

// WinningHorse returns the horse that won
func (o Outcome) WinningHorse() Horse {
	return o.Race.Horses[o.Winner-1]
}

type raceState struct {
	race  Race
	timer Timer
}

func (s *raceState) snapshot() Race {
	r := s.race
	r.Horses = append([]Horse(nil), s.race.Horses...)
	r.Wagers = maps.Clone(s.race.Wagers)
	return r
}

// escrowKey namespaces race escrow in the store, one entry per race
func escrowKey(scope, raceID string) string {
	return "race:" + scope + ":" + raceID
}

// StartRace opens a lobby with RaceFieldSize horses drawn without replacement.
// The lobby is cancelled after RaceLobbyTimeout if nobody has bet by then.
func (r *Registry) StartRace(scope string) (Race, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.races[scope]; ok {
		return Race{}, ErrSessionLive
	}

	n := min(RaceFieldSize, len(r.horses))
	field := make([]Horse, 0, n)
	for _, i := range r.rng.Perm(len(r.horses))[:n] {
		field = append(field, r.horses[i])
	}

	id := uuid.NewString()
	st := &raceState{
		race: Race{
			ID:        id,
			Scope:     scope,
			Horses:    field,
			Wagers:    make(map[string]Wager),
			CreatedAt: time.Now(),
		},
	}
	st.timer = r.afterFunc(RaceLobbyTimeout, func() { r.expireRace(scope, id) })
	r.races[scope] = st

	r.logger.Info("race started", "scope", scope, "race_id", id)
	return st.snapshot(), nil
}

// expireRace runs from the lobby timer. It reloads the slot and only acts if
// the same race is still there with no wagers.
func (r *Registry) expireRace(scope, id string) {
	r.mu.Lock()
	st, ok := r.races[scope]
	if !ok || st.race.ID != id || len(st.race.Wagers) > 0 {
		r.mu.Unlock()
		return
	}
	delete(r.races, scope)
	race := st.snapshot()
	hook := r.hooks.RaceExpired
	r.mu.Unlock()

	r.logger.Info("race expired without wagers", "scope", scope, "race_id", id)
	if hook != nil {
		hook(scope, race)
	}
}

// CurrentRace returns the live race in scope
func (r *Registry) CurrentRace(scope string) (Race, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.races[scope]
	if !ok {
		return Race{}, false
	}
	return st.snapshot(), true
}

// SetRaceMessage records where the lobby was announced so it can be
// retracted on expiry
func (r *Registry) SetRaceMessage(scope, raceID, channelID, messageID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.races[scope]; ok && st.race.ID == raceID {
		st.race.ChannelID = channelID
		st.race.MessageID = messageID
	}
}

// PlaceWager bets amount on horse (1-based). The stake is debited from the
// store immediately and held in escrow until the race resolves.
func (r *Registry) PlaceWager(scope, account string, horse int, amount int64) (Wager, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.races[scope]
	if !ok {
		return Wager{}, ErrNoSession
	}
	if horse < 1 || horse > len(st.race.Horses) {
		return Wager{}, ErrInvalidHorse
	}
	if amount <= 0 {
		return Wager{}, ErrInvalidAmount
	}
	if _, ok := st.race.Wagers[account]; ok {
		return Wager{}, ErrAlreadyWagered
	}
	// Escrow happens under the lock so the stake cannot land after the race resolves
	if err := r.store.EscrowWager(escrowKey(scope, st.race.ID), account, amount); err != nil {
		return Wager{}, err
	}

	w := Wager{Horse: horse, Amount: amount}
	st.race.Wagers[account] = w
	return w, nil
}

// ResolveRace runs the race and pays RacePayoutFactor times the stake to every
// wager on the winner. Ties go to the lowest-numbered horse.
func (r *Registry) ResolveRace(scope string) (Outcome, error) {
	r.mu.Lock()
	st, ok := r.races[scope]
	if !ok {
		r.mu.Unlock()
		return Outcome{}, ErrNoSession
	}
	if len(st.race.Wagers) == 0 {
		r.mu.Unlock()
		return Outcome{}, ErrNoWagers
	}

	scores := make([]int, len(st.race.Horses))
	winner := 0
	for i, h := range st.race.Horses {
		scores[i] = h.Speed + r.rng.IntN(max(h.Stamina, 0)+1)
		if scores[i] > scores[winner] {
			winner = i
		}
	}

	payouts := make(map[string]int64)
	for account, w := range st.race.Wagers {
		if w.Horse == winner+1 {
			payouts[account] = store.SaturatingMul(w.Amount, RacePayoutFactor)
		}
	}

	st.timer.Stop()
	delete(r.races, scope)
	r.mu.Unlock()

	// The race left the registry above; its escrow entry is now ours alone
	r.store.SettleEscrow(escrowKey(scope, st.race.ID), payouts)

	r.logger.Info("race resolved",
		"scope", scope,
		"race_id", st.race.ID,
		"winner", winner+1,
		"wagers", len(st.race.Wagers),
		"winners", len(payouts))

	return Outcome{
		Race:    st.snapshot(),
		Scores:  scores,
		Winner:  winner + 1,
		Payouts: payouts,
	}, nil
}
