// Package match runs one combat engine per player and persists each finished
// combat exactly once.
package match

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pefman/rose-manor/internal/engine"
	"github.com/pefman/rose-manor/internal/game"
	"github.com/pefman/rose-manor/internal/logging"
	"github.com/pefman/rose-manor/internal/models"
	"github.com/pefman/rose-manor/internal/stats"
	"github.com/pefman/rose-manor/internal/store"
)

// Store is what the service needs from persistence.
type Store interface {
	engine.ActionPoints
	Player(ctx context.Context, id string) (models.Player, error)
	Items(ctx context.Context) ([]models.Item, error)
	ApplyCombat(ctx context.Context, rec models.CombatRecord) (bool, error)
}

// Config tunes new engines. A zero Seed draws a fresh crypto seed per combat;
// otherwise combats are seeded Seed, Seed+1, ...
type Config struct {
	Sink          engine.Sink
	OpponentDelay time.Duration
	Seed          int64
	Stats         *stats.Tracker
	Now           func() time.Time
}

type match struct {
	mu     sync.Mutex
	engine *engine.Engine
	rng    engine.Random
}

// Service owns the active combats, keyed by initiating player.
type Service struct {
	store Store
	cfg   Config

	mu        sync.Mutex
	matches   map[string]*match
	seeds     int64
	newRandom func() engine.Random
}

func New(st Store, cfg Config) *Service {
	if cfg.Sink == nil {
		cfg.Sink = engine.Discard
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	s := &Service{store: st, cfg: cfg, matches: make(map[string]*match)}
	s.newRandom = s.random
	return s
}

func (s *Service) random() engine.Random {
	if s.cfg.Seed != 0 {
		seed := s.cfg.Seed + s.seeds
		s.seeds++
		return engine.NewRandom(seed)
	}
	seed, err := engine.NewSeed()
	if err != nil {
		seed = s.cfg.Now().UnixNano()
	}
	return engine.NewRandom(seed)
}

// Start opens a combat between playerID and targetID. A player may be in at
// most one combat as initiator, and neither side may already be fighting.
func (s *Service) Start(ctx context.Context, playerID, targetID string) (engine.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := s.matches[playerID]; ok {
		if err := s.settleLocked(ctx, playerID, m); err != nil {
			return engine.Snapshot{}, err
		}
	}
	s.settlePendingLocked(ctx, playerID)
	s.settlePendingLocked(ctx, targetID)
	if s.fightingLocked(playerID) {
		return engine.Snapshot{}, engine.ErrCombatAlreadyInProgress
	}
	if s.fightingLocked(targetID) {
		return engine.Snapshot{}, fmt.Errorf("%w: %s is already fighting", engine.ErrInvalidCombatStart, targetID)
	}

	player, err := s.store.Player(ctx, playerID)
	if err != nil {
		return engine.Snapshot{}, fmt.Errorf("%w: %w", engine.ErrInvalidCombatStart, err)
	}
	var target *game.Actor
	if t, err := s.store.Player(ctx, targetID); err == nil {
		a := t.Actor()
		target = &a
	} else if !errors.Is(err, store.ErrNotFound) {
		return engine.Snapshot{}, err
	}

	rng := s.newRandom()
	eng := engine.New(s.store,
		engine.WithRandom(rng),
		engine.WithSink(s.cfg.Sink),
		engine.WithOpponentDelay(s.cfg.OpponentDelay),
		engine.WithClock(s.cfg.Now),
	)
	pa := player.Actor()
	snap, err := eng.Start(ctx, &pa, target)
	if err != nil {
		return engine.Snapshot{}, err
	}
	s.matches[playerID] = &match{engine: eng, rng: rng}
	logging.Info("combat started", logging.Fields{
		"session_id": snap.Session.ID,
		"player":     playerID,
		"target":     targetID,
	})
	return snap, nil
}

// Fighting reports whether id is on either side of a combat that is still
// running or whose result has not been persisted yet. Pending results are
// retried first.
func (s *Service) Fighting(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settlePendingLocked(ctx, id)
	return s.fightingLocked(id)
}

// fightingLocked reports whether id appears in any tracked match. Ended
// matches stay tracked until their result is written.
func (s *Service) fightingLocked(id string) bool {
	for pid, m := range s.matches {
		if pid == id {
			return true
		}
		m.mu.Lock()
		snap := m.engine.Snapshot()
		m.mu.Unlock()
		if snap.Session != nil && snap.Session.Opponent.ID == id {
			return true
		}
	}
	return false
}

// settlePendingLocked retries persisting ended matches that involve id.
// Failures are logged by settleLocked and leave the match tracked.
func (s *Service) settlePendingLocked(ctx context.Context, id string) {
	for pid, m := range s.matches {
		m.mu.Lock()
		snap := m.engine.Snapshot()
		m.mu.Unlock()
		if snap.State != engine.StateEnded || snap.Session == nil {
			continue
		}
		if pid != id && snap.Session.Opponent.ID != id {
			continue
		}
		_ = s.settleLocked(ctx, pid, m)
	}
}

func (s *Service) lookup(playerID string) *match {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matches[playerID]
}

// Act performs one player action. When the combat ends the result is
// persisted and the engine released; the returned snapshot still carries the
// ended session and its result.
func (s *Service) Act(ctx context.Context, playerID string, req engine.Request) (engine.Snapshot, error) {
	m := s.lookup(playerID)
	if m == nil {
		if !req.Action.Valid() {
			return engine.Snapshot{}, fmt.Errorf("%w: %q", engine.ErrInvalidAction, req.Action)
		}
		return engine.Snapshot{}, engine.ErrNotYourTurn
	}
	m.mu.Lock()
	snap, err := m.engine.Act(ctx, req)
	m.mu.Unlock()
	if err != nil {
		return snap, err
	}
	if snap.State == engine.StateEnded {
		if err := s.settle(ctx, playerID, m); err != nil {
			return snap, err
		}
	}
	return snap, nil
}

// Get returns the player's current combat, if any.
func (s *Service) Get(playerID string) (engine.Snapshot, bool) {
	m := s.lookup(playerID)
	if m == nil {
		return engine.Snapshot{State: engine.StateIdle}, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.engine.Snapshot(), true
}

// Forfeit aborts the player's combat with no reward or penalty.
func (s *Service) Forfeit(ctx context.Context, playerID string) (engine.Result, error) {
	m := s.lookup(playerID)
	if m == nil {
		return engine.Result{}, engine.ErrNotYourTurn
	}
	// An ended match still here failed to persist; forfeiting retries the
	// write and returns the original result.
	m.mu.Lock()
	var (
		res engine.Result
		err error
	)
	if snap := m.engine.Snapshot(); snap.State == engine.StateEnded && snap.Result != nil {
		res = *snap.Result
	} else {
		res, err = m.engine.Abort()
	}
	m.mu.Unlock()
	if err != nil {
		return engine.Result{}, err
	}
	if err := s.settle(ctx, playerID, m); err != nil {
		return res, err
	}
	return res, nil
}

// ForfeitAll aborts every unfinished combat, for world resets and shutdown.
func (s *Service) ForfeitAll(ctx context.Context) error {
	s.mu.Lock()
	ids := make([]string, 0, len(s.matches))
	for id := range s.matches {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	sort.Strings(ids)

	var errs []error
	for _, id := range ids {
		m := s.lookup(id)
		if m == nil {
			continue
		}
		m.mu.Lock()
		if m.engine.State() != engine.StateEnded {
			_, _ = m.engine.Abort()
		}
		m.mu.Unlock()
		if err := s.settle(ctx, id, m); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Active returns the ids of players with a live combat.
func (s *Service) Active() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.matches))
	for id := range s.matches {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Service) settle(ctx context.Context, playerID string, m *match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.matches[playerID] != m {
		return nil
	}
	return s.settleLocked(ctx, playerID, m)
}

// settleLocked persists an ended combat, resets its engine and drops it. A
// failed write keeps the match so the next call retries; ApplyCombat is
// idempotent per session.
func (s *Service) settleLocked(ctx context.Context, playerID string, m *match) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := m.engine.Snapshot()
	if snap.State != engine.StateEnded || snap.Result == nil {
		return nil
	}
	res := *snap.Result
	rec, err := s.record(ctx, m.rng, res)
	if err != nil {
		return err
	}
	applied, err := s.store.ApplyCombat(ctx, rec)
	if err != nil {
		logging.Error("persist combat failed", err, logging.Fields{"session_id": res.SessionID})
		return fmt.Errorf("persist combat %s: %w", res.SessionID, err)
	}
	if applied && s.cfg.Stats != nil {
		s.cfg.Stats.Add(stats.Fight{
			PlayerID:   res.Player.ID,
			Player:     res.Player.Name,
			Opponent:   res.Opponent.Name,
			Outcome:    res.Outcome.String(),
			Rounds:     res.Rounds,
			Experience: res.Experience,
			BestHit:    res.BestHit,
		})
	}
	if err := m.engine.Reset(); err != nil {
		return err
	}
	delete(s.matches, playerID)
	logging.Info("combat settled", logging.Fields{
		"session_id": res.SessionID,
		"player":     playerID,
		"outcome":    res.Outcome.String(),
		"rounds":     res.Rounds,
	})
	return nil
}

// record maps a result onto its persisted consequences. A victory with an
// item drop takes a uniform pick from the catalog using the combat's rng.
func (s *Service) record(ctx context.Context, rng engine.Random, res engine.Result) (models.CombatRecord, error) {
	rec := models.CombatRecord{
		SessionID:     res.SessionID,
		PlayerID:      res.Player.ID,
		OpponentID:    res.Opponent.ID,
		Outcome:       res.Outcome.String(),
		Rounds:        res.Rounds,
		PlayerHP:      res.Player.HP,
		PlayerSanity:  res.Player.Sanity,
		PlayerAlive:   res.Player.Alive,
		OpponentHP:    res.Opponent.HP,
		OpponentAlive: res.Opponent.Alive,

		PersistOpponent: res.Outcome == engine.OutcomeVictory,
		Experience:      res.Experience,
		BestHit:         res.BestHit,
		EndedAt:         s.cfg.Now().UTC(),
	}
	if !res.ItemDrop {
		return rec, nil
	}
	items, err := s.store.Items(ctx)
	if err != nil {
		return rec, fmt.Errorf("load item catalog: %w", err)
	}
	if len(items) == 0 {
		return rec, nil
	}
	i := int(rng.Float64() * float64(len(items)))
	if i >= len(items) {
		i = len(items) - 1
	}
	drop := items[i]
	drop.InstanceID = uuid.NewString()
	drop.ObtainedAt = rec.EndedAt
	rec.Drop = &drop
	return rec, nil
}
