package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pefman/rose-manor/internal/models"
	"github.com/pefman/rose-manor/internal/store"
	"github.com/pefman/rose-manor/internal/store/storetest"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(*testing.T) store.Store { return New() })
}

func TestPlayerIsCopied(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.CreatePlayer(ctx, models.NewPlayer("p", "P", time.Now())))
	require.NoError(t, s.AddClue(ctx, "p", "ash"))

	p, err := s.Player(ctx, "p")
	require.NoError(t, err)
	p.Clues[0] = "changed"
	p.HP = 1

	again, err := s.Player(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, []string{"ash"}, again.Clues)
	assert.Equal(t, models.DefaultHP, again.HP)
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Players(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
