// Package storetest holds behavior checks shared by every store implementation.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pefman/rose-manor/internal/engine"
	"github.com/pefman/rose-manor/internal/models"
	"github.com/pefman/rose-manor/internal/store"
)

// Run exercises open() against the store contract. open must return an
// empty, seeded store.
func Run(t *testing.T, open func(t *testing.T) store.Store) {
	t.Helper()
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"players", testPlayers},
		{"action points", testActionPoints},
		{"update player", testUpdatePlayer},
		{"items and clues", testItemsAndClues},
		{"catalog", testCatalog},
		{"apply combat", testApplyCombat},
		{"new day", testNewDay},
		{"reset world", testResetWorld},
		{"concurrent writers", testConcurrentWriters},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := open(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func seedPlayer(t *testing.T, s store.Store, id string) models.Player {
	t.Helper()
	p := models.NewPlayer(id, "Player "+id, epoch)
	require.NoError(t, s.CreatePlayer(context.Background(), p))
	return p
}

func testPlayers(t *testing.T, s store.Store) {
	ctx := context.Background()
	want := seedPlayer(t, s, "b")
	seedPlayer(t, s, "a")

	got, err := s.Player(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, want.Name, got.Name)
	assert.Equal(t, models.DefaultHP, got.HP)
	assert.True(t, got.Alive)
	assert.True(t, got.CreatedAt.Equal(epoch))

	err = s.CreatePlayer(ctx, models.NewPlayer("b", "dup", epoch))
	assert.ErrorIs(t, err, store.ErrExists)

	_, err = s.Player(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	all, err := s.Players(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].ID)
	assert.Equal(t, "b", all[1].ID)
}

func testActionPoints(t *testing.T, s store.Store) {
	ctx := context.Background()
	p := models.NewPlayer("p", "P", epoch)
	p.ActionPoints = 2
	require.NoError(t, s.CreatePlayer(ctx, p))

	require.NoError(t, s.Consume(ctx, "p"))
	require.NoError(t, s.Consume(ctx, "p"))
	assert.ErrorIs(t, s.Consume(ctx, "p"), engine.ErrInsufficientResource)

	left, err := s.Remaining(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, 0, left)

	_, err = s.Remaining(ctx, "ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.Consume(ctx, "ghost"), store.ErrNotFound)
}

func testUpdatePlayer(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedPlayer(t, s, "p")

	hp, str := 250, 14
	got, err := s.UpdatePlayer(ctx, "p", models.VitalsPatch{HP: &hp, Strength: &str})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultHP, got.HP, "HP is clamped to max")
	assert.Equal(t, 14, got.Strength)

	zero := 0
	got, err = s.UpdatePlayer(ctx, "p", models.VitalsPatch{Sanity: &zero})
	require.NoError(t, err)
	assert.False(t, got.Alive, "zero sanity kills")

	inv := []models.Item{{ID: "old_key", Name: "Old Key", Kind: "clue"}}
	got, err = s.UpdatePlayer(ctx, "p", models.VitalsPatch{Inventory: &inv})
	require.NoError(t, err)
	require.Len(t, got.Inventory, 1)

	reloaded, err := s.Player(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, 14, reloaded.Strength)
	assert.Equal(t, 0, reloaded.Sanity)
	require.Len(t, reloaded.Inventory, 1)
	assert.Equal(t, "old_key", reloaded.Inventory[0].ID)

	_, err = s.UpdatePlayer(ctx, "ghost", models.VitalsPatch{HP: &hp})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testItemsAndClues(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedPlayer(t, s, "p")

	item := store.DefaultItems()[0]
	item.FromLocation = "garden"
	item.ObtainedAt = epoch
	require.NoError(t, s.AddItem(ctx, "p", item))
	require.NoError(t, s.AddItem(ctx, "p", item))
	require.NoError(t, s.AddClue(ctx, "p", "a torn page"))
	require.NoError(t, s.AddClue(ctx, "p", "a torn page"))

	p, err := s.Player(ctx, "p")
	require.NoError(t, err)
	require.Len(t, p.Inventory, 2)
	assert.NotEmpty(t, p.Inventory[0].InstanceID)
	assert.NotEqual(t, p.Inventory[0].InstanceID, p.Inventory[1].InstanceID)
	assert.Equal(t, "garden", p.Inventory[0].FromLocation)
	assert.Equal(t, []string{"a torn page"}, p.Clues)

	assert.ErrorIs(t, s.AddItem(ctx, "ghost", item), store.ErrNotFound)
	assert.ErrorIs(t, s.AddClue(ctx, "ghost", "x"), store.ErrNotFound)
}

func testCatalog(t *testing.T, s store.Store) {
	ctx := context.Background()
	items, err := s.Items(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.DefaultItems(), items)

	locs, err := s.Locations(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.DefaultLocations(), locs)

	l, err := s.Location(ctx, "library")
	require.NoError(t, err)
	assert.Equal(t, "Library", l.Name)

	_, err = s.Location(ctx, "attic")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testApplyCombat(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedPlayer(t, s, "p")
	seedPlayer(t, s, "o")

	drop := store.DefaultItems()[6]
	drop.InstanceID = "drop-1"
	rec := models.CombatRecord{
		SessionID:       "s1",
		PlayerID:        "p",
		OpponentID:      "o",
		Outcome:         "victory",
		Rounds:          1,
		PlayerHP:        88,
		PlayerSanity:    100,
		PlayerAlive:     true,
		OpponentHP:      0,
		OpponentAlive:   false,
		PersistOpponent: true,
		Experience:      55,
		Drop:            &drop,
		BestHit:         24,
		EndedAt:         epoch,
	}
	applied, err := s.ApplyCombat(ctx, rec)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = s.ApplyCombat(ctx, rec)
	require.NoError(t, err)
	assert.False(t, applied, "second apply is a no-op")

	p, err := s.Player(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, 88, p.HP)
	assert.Equal(t, 55, p.Experience)
	require.Len(t, p.Inventory, 1)
	assert.Equal(t, "lucky_coin", p.Inventory[0].ID)

	o, err := s.Player(ctx, "o")
	require.NoError(t, err)
	assert.Equal(t, 0, o.HP)
	assert.False(t, o.Alive)

	escaped := models.CombatRecord{
		SessionID: "s2", PlayerID: "o", OpponentID: "p", Outcome: "escaped",
		PlayerHP: 0, PlayerSanity: 95, PlayerAlive: false, OpponentHP: 70, OpponentAlive: true,
		EndedAt: epoch.Add(time.Minute),
	}
	_, err = s.ApplyCombat(ctx, escaped)
	require.NoError(t, err)
	p, err = s.Player(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, 88, p.HP, "opponent vitals are not written unless persisted")

	hist, err := s.CombatHistory(ctx, "p", 0)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, "s2", hist[0].SessionID)
	require.NotNil(t, hist[1].Drop)
	assert.Equal(t, "drop-1", hist[1].Drop.InstanceID)

	hist, err = s.CombatHistory(ctx, "p", 1)
	require.NoError(t, err)
	assert.Len(t, hist, 1)
}

func testNewDay(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedPlayer(t, s, "live")
	seedPlayer(t, s, "dead")
	hp, san, ap := 50, 95, 0
	_, err := s.UpdatePlayer(ctx, "live", models.VitalsPatch{HP: &hp, Sanity: &san, ActionPoints: &ap})
	require.NoError(t, err)
	zero := 0
	_, err = s.UpdatePlayer(ctx, "dead", models.VitalsPatch{HP: &zero})
	require.NoError(t, err)

	require.NoError(t, s.NewDay(ctx, 10))

	live, err := s.Player(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, 70, live.HP)
	assert.Equal(t, 100, live.Sanity, "capped at max")
	assert.Equal(t, 10, live.ActionPoints)
	assert.Equal(t, 2, live.Day)

	dead, err := s.Player(ctx, "dead")
	require.NoError(t, err)
	assert.Equal(t, 0, dead.HP)
	assert.False(t, dead.Alive)
	assert.Equal(t, 10, dead.ActionPoints)
}

func testResetWorld(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedPlayer(t, s, "p")
	zero := 0
	_, err := s.UpdatePlayer(ctx, "p", models.VitalsPatch{HP: &zero, ActionPoints: &zero})
	require.NoError(t, err)
	require.NoError(t, s.AddItem(ctx, "p", store.DefaultItems()[1]))
	require.NoError(t, s.AddClue(ctx, "p", "footprints"))

	require.NoError(t, s.ResetWorld(ctx, 10))

	p, err := s.Player(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, p.MaxHP, p.HP)
	assert.True(t, p.Alive)
	assert.Equal(t, 10, p.ActionPoints)
	assert.Empty(t, p.Inventory)
	assert.Empty(t, p.Clues)
}

func testConcurrentWriters(t *testing.T, s store.Store) {
	ctx := context.Background()
	const workers, rounds = 8, 25

	shared := models.NewPlayer("shared", "Shared", epoch)
	shared.ActionPoints = workers
	require.NoError(t, s.CreatePlayer(ctx, shared))
	for w := 0; w < workers; w++ {
		seedPlayer(t, s, fmt.Sprintf("w%d", w))
	}

	var wg sync.WaitGroup
	errs := make(chan error, workers*(rounds+2))
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			id := fmt.Sprintf("w%d", w)
			for i := 1; i <= rounds; i++ {
				hp := i
				if _, err := s.UpdatePlayer(ctx, id, models.VitalsPatch{HP: &hp}); err != nil {
					errs <- fmt.Errorf("update %s: %w", id, err)
				}
			}
			if err := s.AddItem(ctx, id, models.Item{ID: "lucky_coin", Name: "Lucky Coin", Kind: "accessory"}); err != nil {
				errs <- fmt.Errorf("add item %s: %w", id, err)
			}
			if err := s.Consume(ctx, "shared"); err != nil {
				errs <- fmt.Errorf("consume: %w", err)
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	for w := 0; w < workers; w++ {
		p, err := s.Player(ctx, fmt.Sprintf("w%d", w))
		require.NoError(t, err)
		assert.Equal(t, rounds, p.HP)
		assert.Len(t, p.Inventory, 1)
	}
	left, err := s.Remaining(ctx, "shared")
	require.NoError(t, err)
	assert.Equal(t, 0, left, "every consume lands exactly once")
}
