package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pefman/rose-manor/internal/engine"
	"github.com/pefman/rose-manor/internal/explore"
	"github.com/pefman/rose-manor/internal/match"
	"github.com/pefman/rose-manor/internal/models"
	"github.com/pefman/rose-manor/internal/stats"
	"github.com/pefman/rose-manor/internal/store/memory"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store   *memory.Store
	matches *match.Service
	hub     *Hub
	ts      *httptest.Server
}

func newFixture(t *testing.T, adminToken string) *fixture {
	t.Helper()
	st := memory.New()
	now := func() time.Time { return epoch }
	tracker := stats.NewTracker(now)
	hub := NewHub("*")
	matches := match.New(st, match.Config{Sink: hub, Seed: 7, Stats: tracker, Now: now})
	explorer := explore.New(st, engine.NewRandom(7), now)
	srv := New(st, matches, explorer, tracker, hub, Options{
		AdminToken:   adminToken,
		ActionPoints: 10,
		Version:      "test",
		Now:          now,
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		hub.Close()
		ts.Close()
	})
	return &fixture{store: st, matches: matches, hub: hub, ts: ts}
}

func (f *fixture) do(t *testing.T, method, path string, body any, header ...string) (*http.Response, []byte) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, f.ts.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func (f *fixture) createPlayer(t *testing.T, id, name string) models.Player {
	t.Helper()
	resp, body := f.do(t, http.MethodPost, "/api/players", CreatePlayerRequest{ID: id, Name: name})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var p models.Player
	require.NoError(t, json.Unmarshal(body, &p))
	return p
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var e ErrorBody
	require.NoError(t, json.Unmarshal(body, &e))
	return e.Code
}

func TestPlayersRoutes(t *testing.T) {
	f := newFixture(t, "")
	p := f.createPlayer(t, "hero", "Hero")
	assert.Equal(t, 100, p.HP)
	assert.Equal(t, 10, p.ActionPoints)

	resp, body := f.do(t, http.MethodPost, "/api/players", CreatePlayerRequest{ID: "hero", Name: "Again"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, CodeExists, errorCode(t, body))

	resp, body = f.do(t, http.MethodPost, "/api/players", CreatePlayerRequest{Name: "  "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, CodeInvalidRequest, errorCode(t, body))

	anon := f.createPlayer(t, "", "Anon")
	assert.NotEmpty(t, anon.ID)

	resp, body = f.do(t, http.MethodGet, "/api/players", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var all []models.Player
	require.NoError(t, json.Unmarshal(body, &all))
	assert.Len(t, all, 2)

	resp, body = f.do(t, http.MethodGet, "/api/players/nobody", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, CodeNotFound, errorCode(t, body))
}

func TestCatalogRoutes(t *testing.T) {
	f := newFixture(t, "")
	resp, body := f.do(t, http.MethodGet, "/api/locations", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var locs []models.Location
	require.NoError(t, json.Unmarshal(body, &locs))
	assert.Len(t, locs, 8)

	resp, _ = f.do(t, http.MethodGet, "/api/items", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = f.do(t, http.MethodGet, "/version", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"test"`)
}

func TestCombatLifecycle(t *testing.T) {
	f := newFixture(t, "")
	f.createPlayer(t, "hero", "Hero")
	f.createPlayer(t, "ghoul", "Ghoul")

	resp, body := f.do(t, http.MethodGet, "/api/combat/hero", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = f.do(t, http.MethodPost, "/api/combat", StartCombatRequest{Player: "hero", Target: "ghoul"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var snap engine.Snapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.Equal(t, engine.StatePlayerTurn, snap.State)

	resp, body = f.do(t, http.MethodPost, "/api/combat", StartCombatRequest{Player: "hero", Target: "ghoul"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, CodeCombatAlreadyInProgress, errorCode(t, body))

	resp, body = f.do(t, http.MethodPost, "/api/combat/hero/actions", engine.Request{Action: "dance"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, CodeInvalidAction, errorCode(t, body))

	resp, body = f.do(t, http.MethodPost, "/api/combat/hero/actions", engine.Request{Action: engine.ActionSurrender})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, CodeSurrenderNotConfirmed, errorCode(t, body))

	resp, body = f.do(t, http.MethodGet, "/api/combat/hero", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = f.do(t, http.MethodPost, "/api/combat/hero/actions",
		engine.Request{Action: engine.ActionSurrender, Confirmed: true})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.Equal(t, engine.StateEnded, snap.State)
	require.NotNil(t, snap.Result)
	assert.Equal(t, engine.OutcomeSurrendered, snap.Result.Outcome)

	hero, err := f.store.Player(context.Background(), "hero")
	require.NoError(t, err)
	assert.Equal(t, 20, hero.HP)
	assert.Equal(t, 50, hero.Sanity)
	assert.Equal(t, 9, hero.ActionPoints)

	resp, body = f.do(t, http.MethodPost, "/api/combat/hero/actions", engine.Request{Action: engine.ActionAttack})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, CodeNotYourTurn, errorCode(t, body))

	resp, body = f.do(t, http.MethodGet, "/api/stats/hero", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rec stats.Record
	require.NoError(t, json.Unmarshal(body, &rec))
	assert.Equal(t, 1, rec.Surrenders)

	resp, body = f.do(t, http.MethodGet, "/api/players/hero/history", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var hist []models.CombatRecord
	require.NoError(t, json.Unmarshal(body, &hist))
	require.Len(t, hist, 1)
	assert.Equal(t, "surrendered", hist[0].Outcome)
}

func TestStartErrors(t *testing.T) {
	f := newFixture(t, "")
	f.createPlayer(t, "hero", "Hero")

	resp, body := f.do(t, http.MethodPost, "/api/combat", StartCombatRequest{Player: "hero", Target: "hero"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, CodeInvalidCombatStart, errorCode(t, body))

	resp, body = f.do(t, http.MethodPost, "/api/combat", StartCombatRequest{Player: "hero"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = f.do(t, http.MethodPost, "/api/combat", StartCombatRequest{Player: "nobody", Target: "hero"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, CodeInvalidCombatStart, errorCode(t, body))

	f.createPlayer(t, "tired", "Tired")
	zero := 0
	_, err := f.store.UpdatePlayer(context.Background(), "tired", models.VitalsPatch{ActionPoints: &zero})
	require.NoError(t, err)
	resp, body = f.do(t, http.MethodPost, "/api/combat", StartCombatRequest{Player: "tired", Target: "hero"})
	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
	assert.Equal(t, CodeInsufficientResource, errorCode(t, body))

	resp, _ = f.do(t, http.MethodPost, "/api/combat", map[string]any{"player": "hero", "bogus": 1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestForfeitRoute(t *testing.T) {
	f := newFixture(t, "")
	f.createPlayer(t, "hero", "Hero")
	f.createPlayer(t, "ghoul", "Ghoul")

	resp, _ := f.do(t, http.MethodDelete, "/api/combat/hero", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/api/combat", StartCombatRequest{Player: "hero", Target: "ghoul"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, body := f.do(t, http.MethodDelete, "/api/combat/hero", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var res engine.Result
	require.NoError(t, json.Unmarshal(body, &res))
	assert.Equal(t, engine.OutcomeForfeited, res.Outcome)
	assert.Empty(t, f.matches.Active())
}

func TestExploreRoute(t *testing.T) {
	f := newFixture(t, "")
	f.createPlayer(t, "hero", "Hero")
	f.createPlayer(t, "ghoul", "Ghoul")

	resp, body := f.do(t, http.MethodPost, "/api/players/hero/explore", ExploreRequest{Location: "library"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var fnd explore.Finding
	require.NoError(t, json.Unmarshal(body, &fnd))
	assert.Equal(t, "library", fnd.Location.ID)
	assert.Equal(t, 9, fnd.Player.ActionPoints)

	resp, body = f.do(t, http.MethodPost, "/api/players/hero/explore", ExploreRequest{Location: "attic"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/api/combat", StartCombatRequest{Player: "hero", Target: "ghoul"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, body = f.do(t, http.MethodPost, "/api/players/hero/explore", ExploreRequest{Location: "library"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, CodeCombatAlreadyInProgress, errorCode(t, body))
}

func TestTargetIsBusyDuringCombat(t *testing.T) {
	f := newFixture(t, "")
	f.createPlayer(t, "hero", "Hero")
	f.createPlayer(t, "ghoul", "Ghoul")

	resp, _ := f.do(t, http.MethodPost, "/api/combat", StartCombatRequest{Player: "hero", Target: "ghoul"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := f.do(t, http.MethodPost, "/api/players/ghoul/explore", ExploreRequest{Location: "library"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, CodeCombatAlreadyInProgress, errorCode(t, body))

	zero := 0
	resp, body = f.do(t, http.MethodPatch, "/api/admin/players/ghoul", models.VitalsPatch{HP: &zero})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, CodeCombatAlreadyInProgress, errorCode(t, body))

	ghoul, err := f.store.Player(context.Background(), "ghoul")
	require.NoError(t, err)
	assert.Equal(t, 10, ghoul.ActionPoints)
	assert.True(t, ghoul.Alive)

	resp, _ = f.do(t, http.MethodDelete, "/api/combat/hero", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, body = f.do(t, http.MethodPost, "/api/players/ghoul/explore", ExploreRequest{Location: "library"})
	assert.Equal(t, http.StatusOK, resp.StatusCode, string(body))
}

func TestAdminRoutes(t *testing.T) {
	f := newFixture(t, "s3cret")
	f.createPlayer(t, "hero", "Hero")
	f.createPlayer(t, "ghoul", "Ghoul")

	hp := 40
	resp, _ := f.do(t, http.MethodPatch, "/api/admin/players/hero", models.VitalsPatch{HP: &hp})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := f.do(t, http.MethodPatch, "/api/admin/players/hero", models.VitalsPatch{HP: &hp}, "X-Admin-Token", "s3cret")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var p models.Player
	require.NoError(t, json.Unmarshal(body, &p))
	assert.Equal(t, 40, p.HP)

	resp, _ = f.do(t, http.MethodPost, "/api/admin/new-day", nil, "X-Admin-Token", "s3cret")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	hero, err := f.store.Player(context.Background(), "hero")
	require.NoError(t, err)
	assert.Equal(t, 60, hero.HP)
	assert.Equal(t, 2, hero.Day)

	resp, _ = f.do(t, http.MethodPost, "/api/combat", StartCombatRequest{Player: "hero", Target: "ghoul"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body = f.do(t, http.MethodPost, "/api/admin/reset", nil, "X-Admin-Token", "s3cret")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Contains(t, string(body), `"hero"`)
	assert.Empty(t, f.matches.Active())
	hero, err = f.store.Player(context.Background(), "hero")
	require.NoError(t, err)
	assert.Equal(t, hero.MaxHP, hero.HP)
	assert.Equal(t, 10, hero.ActionPoints)
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t, "")
	resp, _ := f.do(t, http.MethodOptions, "/api/players", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestWebsocketStreamsEventsAndForfeitsOnClose(t *testing.T) {
	f := newFixture(t, "")
	f.createPlayer(t, "hero", "Hero")
	f.createPlayer(t, "ghoul", "Ghoul")

	url := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/ws?player=hero"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	var msg models.WsMsg
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "you", msg.Type)

	resp, _ := f.do(t, http.MethodPost, "/api/combat", StartCombatRequest{Player: "hero", Target: "ghoul"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "combat_event", msg.Type)
	data, ok := msg.Data.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, data["message"], "Combat begins")

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return len(f.matches.Active()) == 0 },
		5*time.Second, 20*time.Millisecond, "closing the last socket forfeits")

	hist, err := f.store.CombatHistory(context.Background(), "hero", 0)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "forfeited", hist[0].Outcome)
}

func TestHubCloseWaitsForLeaveHooks(t *testing.T) {
	f := newFixture(t, "")
	f.createPlayer(t, "hero", "Hero")
	f.createPlayer(t, "ghoul", "Ghoul")

	url := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/ws?player=hero"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	var msg models.WsMsg
	require.NoError(t, conn.ReadJSON(&msg))

	resp, _ := f.do(t, http.MethodPost, "/api/combat", StartCombatRequest{Player: "hero", Target: "ghoul"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	f.hub.Close()
	assert.Empty(t, f.matches.Active(), "forfeit ran before Close returned")
	assert.Zero(t, f.hub.Connected("hero"))

	late, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer late.Close()
	require.NoError(t, late.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = late.ReadMessage()
	assert.Error(t, err, "a closed hub turns new sockets away")
}

func TestWebsocketRequiresPlayer(t *testing.T) {
	f := newFixture(t, "")
	resp, _ := f.do(t, http.MethodGet, "/ws", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
