// Package store defines persistence for players, their inventories and the
// consequences of finished combats.
package store

import (
	"context"
	"errors"

	"github.com/pefman/rose-manor/internal/engine"
	"github.com/pefman/rose-manor/internal/models"
)

var (
	// ErrNotFound is returned when a player, item or location does not exist.
	ErrNotFound = errors.New("not found")
	// ErrExists is returned when creating a player whose id is taken.
	ErrExists = errors.New("already exists")
)

// Store is the full persistence surface. Consume returns
// engine.ErrInsufficientResource when the player has no action points left.
type Store interface {
	engine.ActionPoints

	CreatePlayer(ctx context.Context, p models.Player) error
	Player(ctx context.Context, id string) (models.Player, error)
	Players(ctx context.Context) ([]models.Player, error)
	UpdatePlayer(ctx context.Context, id string, patch models.VitalsPatch) (models.Player, error)
	AddItem(ctx context.Context, playerID string, item models.Item) error
	AddClue(ctx context.Context, playerID, clue string) error

	Items(ctx context.Context) ([]models.Item, error)
	Location(ctx context.Context, id string) (models.Location, error)
	Locations(ctx context.Context) ([]models.Location, error)

	// ApplyCombat writes a finished combat's consequences once per session.
	// It reports false when the session was already applied.
	ApplyCombat(ctx context.Context, rec models.CombatRecord) (bool, error)
	CombatHistory(ctx context.Context, playerID string, limit int) ([]models.CombatRecord, error)

	// NewDay advances every player's day, refills action points and restores
	// 20 HP and 10 sanity to the living.
	NewDay(ctx context.Context, actionPoints int) error
	// ResetWorld restores every player to full vitals and actionPoints, revives
	// the dead and empties inventories and clues.
	ResetWorld(ctx context.Context, actionPoints int) error

	Close() error
}

// Daily recovery granted by NewDay.
const (
	NewDayHP     = 20
	NewDaySanity = 10
)

// ApplyNewDay mutates p the way NewDay does.
func ApplyNewDay(p *models.Player, actionPoints int) {
	p.Day++
	p.ActionPoints = actionPoints
	if !p.Alive {
		return
	}
	p.HP = min(p.MaxHP, p.HP+NewDayHP)
	p.Sanity = min(p.MaxSanity, p.Sanity+NewDaySanity)
}

// ApplyReset mutates p the way ResetWorld does.
func ApplyReset(p *models.Player, actionPoints int) {
	p.HP, p.Sanity = p.MaxHP, p.MaxSanity
	p.Alive = true
	p.ActionPoints = actionPoints
	p.Inventory = nil
	p.Clues = nil
}

// ApplyRecord mutates player (and opponent, when the record persists it) the
// way ApplyCombat does. opponent may be nil.
func ApplyRecord(player, opponent *models.Player, rec models.CombatRecord) {
	player.HP = rec.PlayerHP
	player.Sanity = rec.PlayerSanity
	player.Alive = rec.PlayerAlive
	player.Experience += rec.Experience
	if rec.Drop != nil {
		player.Inventory = append(player.Inventory, *rec.Drop)
	}
	if rec.PersistOpponent && opponent != nil {
		opponent.HP = rec.OpponentHP
		opponent.Alive = rec.OpponentAlive
	}
}
