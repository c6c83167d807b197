package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pefman/rose-manor/internal/game"
)

// ActionPoints is the per-player action currency. Every player combat action
// consumes exactly one point; opponent actions never do.
type ActionPoints interface {
	Remaining(ctx context.Context, playerID string) (int, error)
	Consume(ctx context.Context, playerID string) error
}

// Request is one player action. Confirmed is the caller's confirmation gate
// and is required for ActionSurrender.
type Request struct {
	Action    Action `json:"action"`
	Confirmed bool   `json:"confirm,omitempty"`
}

// Engine runs one combat session at a time between a player and an
// AI-controlled opponent. It is not safe for concurrent use; the owner
// serializes calls.
type Engine struct {
	points ActionPoints
	rng    Random
	sink   Sink
	delay  time.Duration
	now    func() time.Time
	newID  func() string

	session *Session
	result  *Result
	bestHit int
}

// Option configures an Engine.
type Option func(*Engine)

// WithRandom injects the random provider.
func WithRandom(r Random) Option { return func(e *Engine) { e.rng = r } }

// WithSink sets the event sink.
func WithSink(s Sink) Option { return func(e *Engine) { e.sink = s } }

// WithOpponentDelay pauses before each opponent action, for presentation pacing only.
func WithOpponentDelay(d time.Duration) Option { return func(e *Engine) { e.delay = d } }

// WithClock overrides the log timestamp source.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithSessionIDs overrides session id generation.
func WithSessionIDs(f func() string) Option { return func(e *Engine) { e.newID = f } }

// New returns an idle engine.
func New(points ActionPoints, opts ...Option) *Engine {
	e := &Engine{points: points, sink: Discard, now: time.Now, newID: uuid.NewString}
	for _, o := range opts {
		o(e)
	}
	if e.rng == nil {
		e.rng = newRNG()
	}
	return e
}

// State reports the current state; StateIdle when no session exists.
func (e *Engine) State() State {
	if e.session == nil {
		return StateIdle
	}
	return e.session.State
}

// Snapshot copies the current session and result.
func (e *Engine) Snapshot() Snapshot {
	if e.session == nil {
		return Snapshot{State: StateIdle}
	}
	snap := Snapshot{State: e.session.State, Session: e.session.clone()}
	if e.result != nil {
		r := *e.result
		snap.Result = &r
	}
	return snap
}

// Start opens a session between initiator and target. The initiator must be
// alive with at least one action point; the target must exist and be alive.
// Starting does not consume an action point.
func (e *Engine) Start(ctx context.Context, initiator, target *game.Actor) (Snapshot, error) {
	switch e.State() {
	case StateIdle:
	case StateEnded:
		return Snapshot{}, fmt.Errorf("%w: previous combat has not been reset", ErrInvalidCombatStart)
	default:
		return Snapshot{}, ErrCombatAlreadyInProgress
	}
	if initiator == nil {
		return Snapshot{}, fmt.Errorf("%w: missing initiator", ErrInvalidCombatStart)
	}
	if target == nil {
		return Snapshot{}, fmt.Errorf("%w: missing target", ErrInvalidCombatStart)
	}
	if !initiator.Alive || initiator.HP <= 0 {
		return Snapshot{}, fmt.Errorf("%w: %s cannot fight while dead", ErrInvalidCombatStart, initiator.Name)
	}
	if !target.Alive || target.HP <= 0 {
		return Snapshot{}, fmt.Errorf("%w: %s cannot fight", ErrInvalidCombatStart, target.Name)
	}
	if initiator.ID != "" && initiator.ID == target.ID {
		return Snapshot{}, fmt.Errorf("%w: cannot fight yourself", ErrInvalidCombatStart)
	}
	for _, a := range []*game.Actor{initiator, target} {
		if err := validVitals(*a); err != nil {
			return Snapshot{}, fmt.Errorf("%w: %v", ErrInvalidCombatStart, err)
		}
	}
	left, err := e.points.Remaining(ctx, initiator.ID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read action points: %w", err)
	}
	if left <= 0 {
		return Snapshot{}, fmt.Errorf("%w: %w", ErrInvalidCombatStart, ErrInsufficientResource)
	}

	e.session = &Session{
		ID:        e.newID(),
		Player:    *initiator,
		Opponent:  *target,
		Round:     1,
		State:     StateActive,
		StartedAt: e.now(),
	}
	e.result = nil
	e.bestHit = 0
	e.logf("Combat begins: %s vs %s", initiator.Name, target.Name)
	e.startPlayerTurn()
	e.assertInvariants()
	return e.Snapshot(), nil
}

// Act resolves one player action and, when the turn passes, the opponent's
// reply, before returning. Failures leave the session untouched.
func (e *Engine) Act(ctx context.Context, req Request) (Snapshot, error) {
	if !req.Action.Valid() {
		return Snapshot{}, fmt.Errorf("%w: %q", ErrInvalidAction, req.Action)
	}
	if e.State() != StatePlayerTurn {
		return Snapshot{}, ErrNotYourTurn
	}
	if req.Action == ActionSurrender && !req.Confirmed {
		return Snapshot{}, ErrSurrenderNotConfirmed
	}
	s := e.session
	left, err := e.points.Remaining(ctx, s.Player.ID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read action points: %w", err)
	}
	if left <= 0 {
		return Snapshot{}, ErrInsufficientResource
	}
	if err := e.points.Consume(ctx, s.Player.ID); err != nil {
		return Snapshot{}, fmt.Errorf("consume action point: %w", err)
	}

	// Focus lasts for exactly the next player action.
	focused := s.Focused
	s.Focused = false

	switch req.Action {
	case ActionAttack:
		e.playerAttack(focused)
	case ActionDefend:
		s.PlayerDefending = true
		e.logf("%s takes a defensive stance; the next hit is halved", s.Player.Name)
		s.State = StateOpponentTurn
	case ActionEscape:
		e.escape(ctx)
	case ActionSurrender:
		e.surrender()
	case ActionRest:
		d := game.Rest(s.Player)
		s.Player.HP, s.Player.Sanity = d.HPAfter, d.SanityAfter
		e.logf("%s rests and recovers %d HP and %d sanity", s.Player.Name, d.HPDelta(), d.SanityDelta())
		s.State = StateOpponentTurn
	case ActionTaunt:
		s.Taunted = true
		e.logf("%s taunts %s, who will strike harder next turn", s.Player.Name, s.Opponent.Name)
		s.State = StateOpponentTurn
	case ActionFocus:
		s.Focused = true
		e.logf("%s focuses; the next attack will be a critical hit", s.Player.Name)
		s.State = StateOpponentTurn
	}
	if s.State == StateOpponentTurn {
		e.pace(ctx)
		e.opponentTurn()
	}
	e.assertInvariants()
	return e.Snapshot(), nil
}

// Abort ends an active session as forfeited without reward or penalty, for
// example when the player disconnects.
func (e *Engine) Abort() (Result, error) {
	switch e.State() {
	case StateActive, StatePlayerTurn, StateOpponentTurn:
	default:
		return Result{}, ErrNotYourTurn
	}
	e.logf("%s leaves the fight", e.session.Player.Name)
	e.finish(OutcomeForfeited, 0, false, nil)
	return *e.result, nil
}

// Reset clears an ended session so a new combat may start.
func (e *Engine) Reset() error {
	switch e.State() {
	case StateIdle:
		return nil
	case StateEnded:
		e.session, e.result, e.bestHit = nil, nil, 0
		return nil
	}
	return ErrCombatAlreadyInProgress
}

func (e *Engine) startPlayerTurn() {
	e.session.State = StatePlayerTurn
	e.logf("Round %d - %s's turn", e.session.Round, e.session.Player.Name)
}

func (e *Engine) playerAttack(focused bool) {
	s := e.session
	hit := game.RollDamage(e.rng, s.Player, focused)
	dmg := hit.Damage
	if s.OpponentDefending {
		dmg = game.Defended(dmg)
		s.OpponentDefending = false
		e.logf("%s's guard absorbs half the blow", s.Opponent.Name)
	}
	s.Opponent.HP = game.ApplyDamage(s.Opponent.HP, dmg)
	if dmg > e.bestHit {
		e.bestHit = dmg
	}
	e.logHit(s.Player.Name, hit.Critical, dmg)
	if s.Opponent.HP == 0 {
		e.victory()
		return
	}
	s.State = StateOpponentTurn
}

func (e *Engine) escape(ctx context.Context) {
	s := e.session
	s.EscapeAttempts++
	chance := game.EscapeChance(s.Player.Agility, s.Player.Luck, s.EscapeAttempts)
	if e.rng.Float64() < chance {
		d := game.EscapePenalty(s.Player)
		s.Player.HP, s.Player.Sanity = d.HPAfter, d.SanityAfter
		e.logf("%s escapes, losing %d HP and %d sanity", s.Player.Name, -d.HPDelta(), -d.SanityDelta())
		e.finish(OutcomeEscaped, 0, false, &d)
		return
	}
	e.logf("Escape failed! %s seizes the opening", s.Opponent.Name)
	e.pace(ctx)
	// The punishing strike ignores defense and taunt and does not advance the round.
	e.opponentAttack(false, false)
}

func (e *Engine) surrender() {
	s := e.session
	d := game.SurrenderPenalty(s.Player)
	s.Player.HP, s.Player.Sanity = d.HPAfter, d.SanityAfter
	e.logf("%s surrenders, losing %d HP and %d sanity", s.Player.Name, -d.HPDelta(), -d.SanityDelta())
	e.finish(OutcomeSurrendered, 0, false, &d)
}

func (e *Engine) victory() {
	s := e.session
	s.Opponent.Alive = false
	reward := game.Reward(s.Round)
	drop := e.rng.Float64() < game.DropChance(s.Player.Luck)
	e.logf("%s defeats %s and gains %d experience", s.Player.Name, s.Opponent.Name, reward)
	if drop {
		e.logf("%s dropped an item", s.Opponent.Name)
	}
	e.finish(OutcomeVictory, reward, drop, nil)
}

func (e *Engine) defeat() {
	s := e.session
	s.Player.HP = 0
	s.Player.Alive = false
	e.logf("%s was killed by %s", s.Player.Name, s.Opponent.Name)
	e.finish(OutcomeDefeat, 0, false, nil)
}

func (e *Engine) finish(o Outcome, xp int, drop bool, penalty *game.Drain) {
	s := e.session
	s.State = StateEnded
	s.PlayerDefending, s.OpponentDefending = false, false
	s.Taunted, s.Focused = false, false
	e.result = &Result{
		SessionID:  s.ID,
		Outcome:    o,
		Rounds:     s.Round,
		Player:     s.Player,
		Opponent:   s.Opponent,
		Experience: xp,
		ItemDrop:   drop,
		Penalty:    penalty,
		BestHit:    e.bestHit,
	}
	e.logf("Combat over: %s", o)
}

func (e *Engine) logHit(attacker string, crit bool, dmg int) {
	if crit {
		e.logf("%s lands a critical hit for %d damage!", attacker, dmg)
		return
	}
	e.logf("%s deals %d damage", attacker, dmg)
}

func (e *Engine) logf(format string, args ...any) {
	s := e.session
	entry := LogEntry{At: e.now(), Message: fmt.Sprintf(format, args...)}
	s.Log = append(s.Log, entry)
	e.sink.Emit(Event{
		SessionID: s.ID,
		PlayerID:  s.Player.ID,
		Round:     s.Round,
		State:     s.State,
		Message:   entry.Message,
		At:        entry.At,
	})
}

// pace waits out the opponent delay. Cancellation only shortens the wait.
func (e *Engine) pace(ctx context.Context) {
	if e.delay <= 0 {
		return
	}
	t := time.NewTimer(e.delay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func validVitals(a game.Actor) error {
	if a.MaxHP <= 0 {
		return fmt.Errorf("%s has no max HP", a.Name)
	}
	if a.HP < 0 || a.HP > a.MaxHP {
		return fmt.Errorf("%s HP %d outside [0,%d]", a.Name, a.HP, a.MaxHP)
	}
	if a.Sanity < 0 || (a.TracksSanity() && a.Sanity > a.MaxSanity) {
		return fmt.Errorf("%s sanity %d outside [0,%d]", a.Name, a.Sanity, a.MaxSanity)
	}
	return nil
}

// assertInvariants panics on states the engine must never reach.
func (e *Engine) assertInvariants() {
	s := e.session
	if s == nil {
		return
	}
	if s.Round < 1 {
		panic(fmt.Sprintf("engine: round %d < 1", s.Round))
	}
	if s.EscapeAttempts < 0 {
		panic(fmt.Sprintf("engine: escape attempts %d < 0", s.EscapeAttempts))
	}
	switch s.State {
	case StatePlayerTurn, StateEnded:
	default:
		panic(fmt.Sprintf("engine: session left in %s between actions", s.State))
	}
	for _, a := range []game.Actor{s.Player, s.Opponent} {
		if err := validVitals(a); err != nil {
			panic("engine: " + err.Error())
		}
		if a.HP == 0 && a.Alive && s.State != StateEnded {
			panic(fmt.Sprintf("engine: %s at 0 HP but alive", a.Name))
		}
	}
}
