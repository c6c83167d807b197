// Package server exposes the game over HTTP and websockets.
package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/pefman/rose-manor/internal/engine"
	"github.com/pefman/rose-manor/internal/explore"
	"github.com/pefman/rose-manor/internal/logging"
	"github.com/pefman/rose-manor/internal/match"
	"github.com/pefman/rose-manor/internal/models"
	"github.com/pefman/rose-manor/internal/stats"
	"github.com/pefman/rose-manor/internal/store"
)

// dailyKeep is how many days of best hits survive a new day.
const dailyKeep = 7

// Options are the server's tunables.
type Options struct {
	AllowedOrigin string
	AdminToken    string // empty leaves admin routes open
	ActionPoints  int    // daily pool for new players, new days and resets
	Version       string
	BuildTime     string
	Now           func() time.Time
}

type Server struct {
	store    store.Store
	matches  *match.Service
	explorer *explore.Explorer
	stats    *stats.Tracker
	hub      *Hub
	opts     Options
	router   *mux.Router
}

// New wires the routes. The hub must be the sink the match service emits to.
func New(st store.Store, matches *match.Service, explorer *explore.Explorer, tracker *stats.Tracker, hub *Hub, opts Options) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ActionPoints <= 0 {
		opts.ActionPoints = models.DefaultActionPoints
	}
	s := &Server{store: st, matches: matches, explorer: explorer, stats: tracker, hub: hub, opts: opts}
	hub.OnLeave(s.forfeitOnLeave)
	s.routes()
	return s
}

// Handler returns the root handler with CORS applied.
func (s *Server) Handler() http.Handler {
	return withCORS(s.opts.AllowedOrigin, s.router)
}

func (s *Server) routes() {
	r := mux.NewRouter()
	r.HandleFunc("/version", s.handleVersion).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.hub.ServeWS)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/locations", s.handleLocations).Methods(http.MethodGet)
	api.HandleFunc("/items", s.handleItems).Methods(http.MethodGet)

	api.HandleFunc("/players", s.handleCreatePlayer).Methods(http.MethodPost)
	api.HandleFunc("/players", s.handleListPlayers).Methods(http.MethodGet)
	api.HandleFunc("/players/{id}", s.handleGetPlayer).Methods(http.MethodGet)
	api.HandleFunc("/players/{id}/history", s.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/players/{id}/explore", s.handleExplore).Methods(http.MethodPost)

	api.HandleFunc("/combat", s.handleStartCombat).Methods(http.MethodPost)
	api.HandleFunc("/combat/{player}", s.handleGetCombat).Methods(http.MethodGet)
	api.HandleFunc("/combat/{player}", s.handleForfeit).Methods(http.MethodDelete)
	api.HandleFunc("/combat/{player}/actions", s.handleAct).Methods(http.MethodPost)

	api.HandleFunc("/stats/daily-best-hit", s.handleDailyBestHit).Methods(http.MethodGet)
	api.HandleFunc("/stats/{player}", s.handlePlayerStats).Methods(http.MethodGet)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(s.requireAdmin)
	admin.HandleFunc("/players/{id}", s.handlePatchPlayer).Methods(http.MethodPatch)
	admin.HandleFunc("/new-day", s.handleNewDay).Methods(http.MethodPost)
	admin.HandleFunc("/reset", s.handleReset).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, "no route for "+r.URL.Path)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeInvalidRequest, r.Method+" not allowed on "+r.URL.Path)
	})
	s.router = r
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.AdminToken != "" {
			got := r.Header.Get("X-Admin-Token")
			if subtle.ConstantTimeCompare([]byte(got), []byte(s.opts.AdminToken)) != 1 {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "admin token required")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// forfeitOnLeave aborts the combat of a player whose last socket closed.
func (s *Server) forfeitOnLeave(playerID string) {
	res, err := s.matches.Forfeit(context.Background(), playerID)
	if errors.Is(err, engine.ErrNotYourTurn) {
		return
	}
	if err != nil {
		logging.Error("forfeit on disconnect failed", err, logging.Fields{"player": playerID})
		return
	}
	logging.Info("combat forfeited on disconnect", logging.Fields{"player": playerID, "session_id": res.SessionID})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version": s.opts.Version,
		"time":    s.opts.BuildTime,
	})
}

func (s *Server) handleLocations(w http.ResponseWriter, r *http.Request) {
	locs, err := s.store.Locations(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, locs)
}

func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.Items(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// CreatePlayerRequest is the body of POST /api/players.
type CreatePlayerRequest struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

func (s *Server) handleCreatePlayer(w http.ResponseWriter, r *http.Request) {
	var req CreatePlayerRequest
	if err := decode(w, r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeErr(w, r, fmt.Errorf("%w: name is required", errBadRequest))
		return
	}
	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = uuid.NewString()
	}
	p := models.NewPlayer(id, name, s.opts.Now())
	p.ActionPoints = s.opts.ActionPoints
	if err := s.store.CreatePlayer(r.Context(), p); err != nil {
		writeErr(w, r, err)
		return
	}
	logging.Info("player created", logging.Fields{"player": id, "name": name})
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleListPlayers(w http.ResponseWriter, r *http.Request) {
	players, err := s.store.Players(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, players)
}

func (s *Server) handleGetPlayer(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.Player(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeErr(w, r, fmt.Errorf("%w: limit must be a non-negative integer", errBadRequest))
			return
		}
		limit = n
	}
	if _, err := s.store.Player(r.Context(), id); err != nil {
		writeErr(w, r, err)
		return
	}
	recs, err := s.store.CombatHistory(r.Context(), id, limit)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if recs == nil {
		recs = []models.CombatRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

// ExploreRequest is the body of POST /api/players/{id}/explore.
type ExploreRequest struct {
	Location string `json:"location"`
}

func (s *Server) handleExplore(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req ExploreRequest
	if err := decode(w, r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	if s.inCombat(r.Context(), id) {
		writeErr(w, r, engine.ErrCombatAlreadyInProgress)
		return
	}
	f, err := s.explorer.Explore(r.Context(), id, req.Location)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// inCombat covers both sides of a fight and results still waiting to be
// written.
func (s *Server) inCombat(ctx context.Context, playerID string) bool {
	return s.matches.Fighting(ctx, playerID)
}

// StartCombatRequest is the body of POST /api/combat.
type StartCombatRequest struct {
	Player string `json:"player"`
	Target string `json:"target"`
}

func (s *Server) handleStartCombat(w http.ResponseWriter, r *http.Request) {
	var req StartCombatRequest
	if err := decode(w, r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	if req.Player == "" || req.Target == "" {
		writeErr(w, r, fmt.Errorf("%w: player and target are required", errBadRequest))
		return
	}
	snap, err := s.matches.Start(r.Context(), req.Player, req.Target)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

func (s *Server) handleGetCombat(w http.ResponseWriter, r *http.Request) {
	player := mux.Vars(r)["player"]
	snap, ok := s.matches.Get(player)
	if !ok {
		writeError(w, http.StatusNotFound, CodeNotFound, "no combat for "+player)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleAct(w http.ResponseWriter, r *http.Request) {
	player := mux.Vars(r)["player"]
	var req engine.Request
	if err := decode(w, r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	snap, err := s.matches.Act(r.Context(), player, req)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if snap.Result != nil {
		s.hub.Send(player, models.WsMsg{Type: "combat_result", Data: snap.Result})
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleForfeit(w http.ResponseWriter, r *http.Request) {
	player := mux.Vars(r)["player"]
	res, err := s.matches.Forfeit(r.Context(), player)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	s.hub.Send(player, models.WsMsg{Type: "combat_result", Data: res})
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDailyBestHit(w http.ResponseWriter, r *http.Request) {
	h, ok := s.stats.BestHitToday()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{})
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handlePlayerStats(w http.ResponseWriter, r *http.Request) {
	player := mux.Vars(r)["player"]
	if _, err := s.store.Player(r.Context(), player); err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.stats.Player(player))
}

func (s *Server) handlePatchPlayer(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var patch models.VitalsPatch
	if err := decode(w, r, &patch); err != nil {
		writeErr(w, r, err)
		return
	}
	if s.inCombat(r.Context(), id) {
		writeErr(w, r, engine.ErrCombatAlreadyInProgress)
		return
	}
	p, err := s.store.UpdatePlayer(r.Context(), id, patch)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	logging.Info("player patched", logging.Fields{"player": id})
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleNewDay(w http.ResponseWriter, r *http.Request) {
	if err := s.store.NewDay(r.Context(), s.opts.ActionPoints); err != nil {
		writeErr(w, r, err)
		return
	}
	s.stats.Prune(dailyKeep)
	logging.Info("new day", logging.Fields{"action_points": s.opts.ActionPoints})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "action_points": s.opts.ActionPoints})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	forfeited := s.matches.Active()
	if err := s.matches.ForfeitAll(r.Context()); err != nil {
		writeErr(w, r, err)
		return
	}
	if err := s.store.ResetWorld(r.Context(), s.opts.ActionPoints); err != nil {
		writeErr(w, r, err)
		return
	}
	s.stats.ResetDaily()
	logging.Info("world reset", logging.Fields{"forfeited": len(forfeited)})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "forfeited": forfeited})
}
