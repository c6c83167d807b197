// Package memory is an in-process store, used when no database path is set.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/pefman/rose-manor/internal/engine"
	"github.com/pefman/rose-manor/internal/models"
	"github.com/pefman/rose-manor/internal/store"
)

// Store keeps everything in mutex-guarded maps.
type Store struct {
	mu        sync.Mutex
	players   map[string]*models.Player
	items     []models.Item
	locations []models.Location
	records   map[string]models.CombatRecord
	history   []string // session ids in apply order
}

var _ store.Store = (*Store)(nil)

// New returns a store seeded with the default catalog and locations.
func New() *Store {
	return &Store{
		players:   make(map[string]*models.Player),
		items:     store.DefaultItems(),
		locations: store.DefaultLocations(),
		records:   make(map[string]models.CombatRecord),
	}
}

func clonePlayer(p *models.Player) models.Player {
	c := *p
	c.Clues = append([]string(nil), p.Clues...)
	c.Inventory = append([]models.Item(nil), p.Inventory...)
	return c
}

func (s *Store) get(id string) (*models.Player, error) {
	p, ok := s.players[id]
	if !ok {
		return nil, fmt.Errorf("player %q: %w", id, store.ErrNotFound)
	}
	return p, nil
}

func (s *Store) Remaining(ctx context.Context, playerID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.get(playerID)
	if err != nil {
		return 0, err
	}
	return p.ActionPoints, nil
}

func (s *Store) Consume(ctx context.Context, playerID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.get(playerID)
	if err != nil {
		return err
	}
	if p.ActionPoints <= 0 {
		return engine.ErrInsufficientResource
	}
	p.ActionPoints--
	return nil
}

func (s *Store) CreatePlayer(ctx context.Context, p models.Player) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.players[p.ID]; ok {
		return fmt.Errorf("player %q: %w", p.ID, store.ErrExists)
	}
	c := clonePlayer(&p)
	s.players[p.ID] = &c
	return nil
}

func (s *Store) Player(ctx context.Context, id string) (models.Player, error) {
	if err := ctx.Err(); err != nil {
		return models.Player{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.get(id)
	if err != nil {
		return models.Player{}, err
	}
	return clonePlayer(p), nil
}

func (s *Store) Players(ctx context.Context) ([]models.Player, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Player, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, clonePlayer(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpdatePlayer(ctx context.Context, id string, patch models.VitalsPatch) (models.Player, error) {
	if err := ctx.Err(); err != nil {
		return models.Player{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.get(id)
	if err != nil {
		return models.Player{}, err
	}
	patch.Apply(p)
	return clonePlayer(p), nil
}

func (s *Store) AddItem(ctx context.Context, playerID string, item models.Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.get(playerID)
	if err != nil {
		return err
	}
	if item.InstanceID == "" {
		item.InstanceID = uuid.NewString()
	}
	p.Inventory = append(p.Inventory, item)
	return nil
}

func (s *Store) AddClue(ctx context.Context, playerID, clue string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.get(playerID)
	if err != nil {
		return err
	}
	for _, c := range p.Clues {
		if c == clue {
			return nil
		}
	}
	p.Clues = append(p.Clues, clue)
	return nil
}

func (s *Store) Items(ctx context.Context) ([]models.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Item(nil), s.items...), nil
}

func (s *Store) Location(ctx context.Context, id string) (models.Location, error) {
	if err := ctx.Err(); err != nil {
		return models.Location{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.locations {
		if l.ID == id {
			return l, nil
		}
	}
	return models.Location{}, fmt.Errorf("location %q: %w", id, store.ErrNotFound)
}

func (s *Store) Locations(ctx context.Context) ([]models.Location, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Location(nil), s.locations...), nil
}

func (s *Store) ApplyCombat(ctx context.Context, rec models.CombatRecord) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.SessionID]; ok {
		return false, nil
	}
	p, err := s.get(rec.PlayerID)
	if err != nil {
		return false, err
	}
	var opp *models.Player
	if rec.PersistOpponent {
		if opp, err = s.get(rec.OpponentID); err != nil {
			return false, err
		}
	}
	store.ApplyRecord(p, opp, rec)
	s.records[rec.SessionID] = rec
	s.history = append(s.history, rec.SessionID)
	return true, nil
}

func (s *Store) CombatHistory(ctx context.Context, playerID string, limit int) ([]models.CombatRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.CombatRecord
	for i := len(s.history) - 1; i >= 0; i-- {
		rec := s.records[s.history[i]]
		if rec.PlayerID != playerID && rec.OpponentID != playerID {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) NewDay(ctx context.Context, actionPoints int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.players {
		store.ApplyNewDay(p, actionPoints)
	}
	return nil
}

func (s *Store) ResetWorld(ctx context.Context, actionPoints int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.players {
		store.ApplyReset(p, actionPoints)
	}
	return nil
}

func (s *Store) Close() error { return nil }
