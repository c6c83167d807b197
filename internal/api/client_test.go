package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pefman/rose-manor/internal/engine"
	"github.com/pefman/rose-manor/internal/explore"
	"github.com/pefman/rose-manor/internal/match"
	"github.com/pefman/rose-manor/internal/models"
	"github.com/pefman/rose-manor/internal/server"
	"github.com/pefman/rose-manor/internal/stats"
	"github.com/pefman/rose-manor/internal/store"
	"github.com/pefman/rose-manor/internal/store/memory"
)

func newServer(t *testing.T, token string) *Client {
	t.Helper()
	st := memory.New()
	now := func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	tracker := stats.NewTracker(now)
	hub := server.NewHub("*")
	matches := match.New(st, match.Config{Sink: hub, Seed: 3, Stats: tracker, Now: now})
	srv := server.New(st, matches, explore.New(st, engine.NewRandom(3), now), tracker, hub, server.Options{
		AdminToken:   token,
		ActionPoints: 10,
		Now:          now,
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return NewClient(ts.URL + "/")
}

func TestClientCombatRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newServer(t, "")

	_, err := c.CreatePlayer(ctx, "hero", "Hero")
	require.NoError(t, err)
	_, err = c.CreatePlayer(ctx, "ghoul", "Ghoul")
	require.NoError(t, err)

	_, err = c.Combat(ctx, "hero")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = c.StartCombat(ctx, "nobody", "ghoul")
	assert.ErrorIs(t, err, engine.ErrInvalidCombatStart)

	snap, err := c.StartCombat(ctx, "hero", "ghoul")
	require.NoError(t, err)
	assert.Equal(t, engine.StatePlayerTurn, snap.State)

	_, err = c.StartCombat(ctx, "hero", "ghoul")
	assert.ErrorIs(t, err, engine.ErrCombatAlreadyInProgress)
	assert.ErrorIs(t, err, engine.ErrInvalidCombatStart)

	_, err = c.Act(ctx, "hero", engine.Request{Action: engine.ActionSurrender})
	assert.ErrorIs(t, err, engine.ErrSurrenderNotConfirmed)
	assert.ErrorIs(t, err, engine.ErrInvalidAction)

	snap, err = c.Act(ctx, "hero", engine.Request{Action: engine.ActionSurrender, Confirmed: true})
	require.NoError(t, err)
	require.NotNil(t, snap.Result)
	assert.Equal(t, engine.OutcomeSurrendered, snap.Result.Outcome)

	_, err = c.Forfeit(ctx, "hero")
	assert.ErrorIs(t, err, engine.ErrNotYourTurn)

	rec, err := c.PlayerStats(ctx, "hero")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Surrenders)

	_, ok, err := c.DailyBestHit(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	hist, err := c.History(ctx, "hero", 5)
	require.NoError(t, err)
	assert.Len(t, hist, 1)

	p, err := c.Player(ctx, "hero")
	require.NoError(t, err)
	assert.Equal(t, 20, p.HP)
}

func TestClientAdmin(t *testing.T) {
	ctx := context.Background()
	c := newServer(t, "tok")
	_, err := c.CreatePlayer(ctx, "hero", "Hero")
	require.NoError(t, err)

	var apiErr *Error
	err = c.NewDay(ctx)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)

	c.WithAdminToken("tok")
	require.NoError(t, c.NewDay(ctx))
	hp := 10
	p, err := c.PatchPlayer(ctx, "hero", models.VitalsPatch{HP: &hp})
	require.NoError(t, err)
	assert.Equal(t, 10, p.HP)

	forfeited, err := c.Reset(ctx)
	require.NoError(t, err)
	assert.Empty(t, forfeited)
	p, err = c.Player(ctx, "hero")
	require.NoError(t, err)
	assert.Equal(t, p.MaxHP, p.HP)
}

func TestLocationsAreCached(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"garden","name":"Rose Garden","description":""}]`))
	}))
	defer ts.Close()

	c := NewClient(ts.URL)
	for i := 0; i < 3; i++ {
		locs, err := c.Locations(context.Background())
		require.NoError(t, err)
		require.Len(t, locs, 1)
	}
	assert.Equal(t, int32(1), hits.Load())
}

func TestExploreThroughClient(t *testing.T) {
	ctx := context.Background()
	c := newServer(t, "")
	_, err := c.CreatePlayer(ctx, "hero", "Hero")
	require.NoError(t, err)

	f, err := c.Explore(ctx, "hero", "cafe")
	require.NoError(t, err)
	assert.Equal(t, "cafe", f.Location.ID)

	_, err = c.Explore(ctx, "ghost", "cafe")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
