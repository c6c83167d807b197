package explore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/pefman/rose-manor/internal/engine"
	"github.com/pefman/rose-manor/internal/models"
	"github.com/pefman/rose-manor/internal/store"
	"github.com/pefman/rose-manor/internal/store/memory"
)

type fixed []float64

func (f *fixed) Float64() float64 {
	v := (*f)[0]
	*f = (*f)[1:]
	return v
}

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T, draws ...float64) (*memory.Store, *Explorer) {
	t.Helper()
	st := memory.New()
	require.NoError(t, st.CreatePlayer(context.Background(), models.NewPlayer("p", "P", epoch)))
	r := fixed(draws)
	return st, New(st, &r, func() time.Time { return epoch })
}

func TestExploreOutcomes(t *testing.T) {
	tests := []struct {
		name  string
		draws []float64
		check func(t *testing.T, f Finding)
	}{
		{"item", []float64{0.0, 0.0}, func(t *testing.T, f Finding) {
			require.NotNil(t, f.Item)
			assert.Equal(t, "rose_bayonet", f.Item.ID)
			assert.Equal(t, "garden", f.Item.FromLocation)
			require.Len(t, f.Player.Inventory, 1)
		}},
		{"clue", []float64{0.2, 0.0}, func(t *testing.T, f Finding) {
			assert.Equal(t, clues[0], f.Clue)
			assert.Equal(t, []string{clues[0]}, f.Player.Clues)
		}},
		{"trap", []float64{0.4}, func(t *testing.T, f Finding) {
			assert.Equal(t, TrapDamage, f.HPLost)
			assert.Equal(t, models.DefaultHP-TrapDamage, f.Player.HP)
		}},
		{"whisper", []float64{0.6}, func(t *testing.T, f Finding) {
			assert.Equal(t, WhisperSanity, f.SanityLost)
			assert.Equal(t, models.DefaultSanity-WhisperSanity, f.Player.Sanity)
		}},
		{"nothing", []float64{0.99}, func(t *testing.T, f Finding) {
			assert.Equal(t, models.DefaultHP, f.Player.HP)
			assert.Empty(t, f.Player.Inventory)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, x := setup(t, tt.draws...)
			f, err := x.Explore(context.Background(), "p", "garden")
			require.NoError(t, err)
			assert.Equal(t, Kind(tt.name), f.Kind)
			assert.Equal(t, "garden", f.Location.ID)
			assert.NotEmpty(t, f.Message)
			assert.Equal(t, models.DefaultActionPoints-1, f.Player.ActionPoints)
			tt.check(t, f)
		})
	}
}

func TestExploreRejections(t *testing.T) {
	ctx := context.Background()
	st, x := setup(t)

	_, err := x.Explore(ctx, "p", "attic")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = x.Explore(ctx, "ghost", "garden")
	assert.ErrorIs(t, err, store.ErrNotFound)

	zero := 0
	_, err = st.UpdatePlayer(ctx, "p", models.VitalsPatch{ActionPoints: &zero})
	require.NoError(t, err)
	_, err = x.Explore(ctx, "p", "garden")
	assert.ErrorIs(t, err, engine.ErrInsufficientResource)

	_, err = st.UpdatePlayer(ctx, "p", models.VitalsPatch{HP: &zero})
	require.NoError(t, err)
	_, err = x.Explore(ctx, "p", "garden")
	assert.ErrorIs(t, err, ErrCannotExplore)
}

func TestTrapCanKill(t *testing.T) {
	ctx := context.Background()
	st, x := setup(t, 0.4)
	hp := 3
	_, err := st.UpdatePlayer(ctx, "p", models.VitalsPatch{HP: &hp})
	require.NoError(t, err)

	f, err := x.Explore(ctx, "p", "gym")
	require.NoError(t, err)
	assert.Equal(t, 3, f.HPLost)
	assert.Equal(t, 0, f.Player.HP)
	assert.False(t, f.Player.Alive)
}

func TestPickStaysInRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 50).Draw(t, "n")
		v := rapid.Float64Range(0, 1).Draw(t, "v")
		i := pick(n, v)
		if i < 0 || i >= n {
			t.Fatalf("pick(%d, %v) = %d", n, v, i)
		}
	})
}
