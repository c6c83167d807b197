// Package explore resolves a player searching a manor location.
package explore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pefman/rose-manor/internal/engine"
	"github.com/pefman/rose-manor/internal/logging"
	"github.com/pefman/rose-manor/internal/models"
)

// Kind is the outcome of one search.
type Kind string

const (
	KindItem    Kind = "item"
	KindClue    Kind = "clue"
	KindTrap    Kind = "trap"
	KindWhisper Kind = "whisper"
	KindNothing Kind = "nothing"
)

var kinds = []Kind{KindItem, KindClue, KindTrap, KindWhisper, KindNothing}

const (
	TrapDamage    = 5
	WhisperSanity = 10
	clueItemKind  = "clue"
)

// ErrCannotExplore is returned for dead players.
var ErrCannotExplore = errors.New("cannot explore")

var clues = []string{
	"Strange carvings on the corner of a table.",
	"A page torn from a guest book, names scratched out.",
	"Muddy footprints that stop at a wall.",
	"A rose pressed between two floorboards.",
	"A photograph of the manor with one extra window.",
}

// Store is what exploring reads and writes.
type Store interface {
	engine.ActionPoints
	Player(ctx context.Context, id string) (models.Player, error)
	UpdatePlayer(ctx context.Context, id string, patch models.VitalsPatch) (models.Player, error)
	AddItem(ctx context.Context, playerID string, item models.Item) error
	AddClue(ctx context.Context, playerID, clue string) error
	Items(ctx context.Context) ([]models.Item, error)
	Location(ctx context.Context, id string) (models.Location, error)
}

// Finding is the result of one search.
type Finding struct {
	Location   models.Location `json:"location"`
	Kind       Kind            `json:"kind"`
	Message    string          `json:"message"`
	Item       *models.Item    `json:"item,omitempty"`
	Clue       string          `json:"clue,omitempty"`
	HPLost     int             `json:"hp_lost,omitempty"`
	SanityLost int             `json:"sanity_lost,omitempty"`
	Player     models.Player   `json:"player"`
}

// Explorer spends one action point per search.
type Explorer struct {
	store Store
	now   func() time.Time

	mu  sync.Mutex // guards rng
	rng engine.Random
}

func New(st Store, rng engine.Random, now func() time.Time) *Explorer {
	if now == nil {
		now = time.Now
	}
	return &Explorer{store: st, rng: rng, now: now}
}

func (x *Explorer) draw() float64 {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.rng.Float64()
}

func pick(n int, v float64) int {
	i := int(v * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}

// Explore searches locationID. The outcome kind is uniform; items are a
// uniform pick from the non-clue catalog.
func (x *Explorer) Explore(ctx context.Context, playerID, locationID string) (Finding, error) {
	loc, err := x.store.Location(ctx, locationID)
	if err != nil {
		return Finding{}, err
	}
	p, err := x.store.Player(ctx, playerID)
	if err != nil {
		return Finding{}, err
	}
	if !p.Alive {
		return Finding{}, fmt.Errorf("%w: %s is dead", ErrCannotExplore, p.Name)
	}
	left, err := x.store.Remaining(ctx, playerID)
	if err != nil {
		return Finding{}, err
	}
	if left <= 0 {
		return Finding{}, engine.ErrInsufficientResource
	}
	if err := x.store.Consume(ctx, playerID); err != nil {
		return Finding{}, err
	}

	f := Finding{Location: loc, Kind: kinds[pick(len(kinds), x.draw())]}
	switch f.Kind {
	case KindItem:
		items, err := x.store.Items(ctx)
		if err != nil {
			return Finding{}, err
		}
		var found []models.Item
		for _, it := range items {
			if it.Kind != clueItemKind {
				found = append(found, it)
			}
		}
		if len(found) == 0 {
			f.Kind = KindNothing
			f.Message = fmt.Sprintf("You search the %s but find nothing.", loc.Name)
			break
		}
		it := found[pick(len(found), x.draw())]
		it.InstanceID = uuid.NewString()
		it.ObtainedAt = x.now().UTC()
		it.FromLocation = loc.ID
		if err := x.store.AddItem(ctx, playerID, it); err != nil {
			return Finding{}, err
		}
		f.Item = &it
		f.Message = fmt.Sprintf("You found %s in the %s.", it.Name, loc.Name)
	case KindClue:
		f.Clue = clues[pick(len(clues), x.draw())]
		if err := x.store.AddClue(ctx, playerID, f.Clue); err != nil {
			return Finding{}, err
		}
		f.Message = "You notice something: " + f.Clue
	case KindTrap:
		hp := max(0, p.HP-TrapDamage)
		f.HPLost = p.HP - hp
		if _, err := x.store.UpdatePlayer(ctx, playerID, models.VitalsPatch{HP: &hp}); err != nil {
			return Finding{}, err
		}
		f.Message = fmt.Sprintf("A trap in the %s! You lose %d HP.", loc.Name, f.HPLost)
	case KindWhisper:
		san := max(0, p.Sanity-WhisperSanity)
		f.SanityLost = p.Sanity - san
		if _, err := x.store.UpdatePlayer(ctx, playerID, models.VitalsPatch{Sanity: &san}); err != nil {
			return Finding{}, err
		}
		f.Message = fmt.Sprintf("Whispers fill the %s. You lose %d sanity.", loc.Name, f.SanityLost)
	default:
		f.Message = fmt.Sprintf("You search the %s but find nothing.", loc.Name)
	}

	f.Player, err = x.store.Player(ctx, playerID)
	if err != nil {
		return Finding{}, err
	}
	logging.Info("explored", logging.Fields{"player": playerID, "location": loc.ID, "kind": string(f.Kind)})
	return f, nil
}
