// Package api is a typed HTTP client for the game server.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pefman/rose-manor/internal/engine"
	"github.com/pefman/rose-manor/internal/explore"
	"github.com/pefman/rose-manor/internal/models"
	"github.com/pefman/rose-manor/internal/server"
	"github.com/pefman/rose-manor/internal/stats"
	"github.com/pefman/rose-manor/internal/store"
)

var httpClient = &http.Client{Timeout: 8 * time.Second}

// Config holds API configuration
type Config struct {
	BaseURL    string
	AdminToken string
}

type Client struct {
	config Config
	http   *http.Client

	// Locations never change while a server runs.
	locMu    sync.RWMutex
	locCache []models.Location
	locTime  time.Time
	locTTL   time.Duration
}

func NewClient(baseURL string) *Client {
	return &Client{
		config: Config{BaseURL: baseURL},
		http:   httpClient,
		locTTL: 5 * time.Minute,
	}
}

// WithAdminToken sets the token sent on admin routes.
func (c *Client) WithAdminToken(token string) *Client {
	c.config.AdminToken = token
	return c
}

// Error is a non-2xx response. It unwraps to the matching sentinel so callers
// can use errors.Is across the wire.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api status %d", e.Status)
	}
	return fmt.Sprintf("api status %d: %s", e.Status, e.Message)
}

func (e *Error) Unwrap() error {
	switch e.Code {
	case server.CodeNotFound:
		return store.ErrNotFound
	case server.CodeExists:
		return store.ErrExists
	case server.CodeInvalidCombatStart:
		return engine.ErrInvalidCombatStart
	case server.CodeCombatAlreadyInProgress:
		return engine.ErrCombatAlreadyInProgress
	case server.CodeNotYourTurn:
		return engine.ErrNotYourTurn
	case server.CodeInsufficientResource:
		return engine.ErrInsufficientResource
	case server.CodeInvalidAction:
		return engine.ErrInvalidAction
	case server.CodeSurrenderNotConfirmed:
		return engine.ErrSurrenderNotConfirmed
	case server.CodeCannotExplore:
		return explore.ErrCannotExplore
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	base := strings.TrimRight(c.config.BaseURL, "/")
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, base+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.AdminToken != "" && strings.HasPrefix(path, "/api/admin/") {
		req.Header.Set("X-Admin-Token", c.config.AdminToken)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb server.ErrorBody
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&eb)
		return &Error{Status: resp.StatusCode, Code: eb.Code, Message: eb.Message}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) apiGet(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) apiPost(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

// Version returns the server build version and time.
func (c *Client) Version(ctx context.Context) (map[string]string, error) {
	var v map[string]string
	err := c.apiGet(ctx, "/version", &v)
	return v, err
}

// Locations returns the manor locations, cached for a few minutes.
func (c *Client) Locations(ctx context.Context) ([]models.Location, error) {
	c.locMu.RLock()
	if c.locCache != nil && time.Since(c.locTime) < c.locTTL {
		out := append([]models.Location(nil), c.locCache...)
		c.locMu.RUnlock()
		return out, nil
	}
	c.locMu.RUnlock()

	var locs []models.Location
	if err := c.apiGet(ctx, "/api/locations", &locs); err != nil {
		return nil, err
	}
	c.locMu.Lock()
	c.locCache = locs
	c.locTime = time.Now()
	c.locMu.Unlock()
	return append([]models.Location(nil), locs...), nil
}

func (c *Client) Items(ctx context.Context) ([]models.Item, error) {
	var items []models.Item
	err := c.apiGet(ctx, "/api/items", &items)
	return items, err
}

// CreatePlayer registers a character; an empty id lets the server pick one.
func (c *Client) CreatePlayer(ctx context.Context, id, name string) (models.Player, error) {
	var p models.Player
	err := c.apiPost(ctx, "/api/players", server.CreatePlayerRequest{ID: id, Name: name}, &p)
	return p, err
}

func (c *Client) Players(ctx context.Context) ([]models.Player, error) {
	var ps []models.Player
	err := c.apiGet(ctx, "/api/players", &ps)
	return ps, err
}

func (c *Client) Player(ctx context.Context, id string) (models.Player, error) {
	var p models.Player
	err := c.apiGet(ctx, "/api/players/"+url.PathEscape(id), &p)
	return p, err
}

// History returns the player's newest combat records.
func (c *Client) History(ctx context.Context, id string, limit int) ([]models.CombatRecord, error) {
	var recs []models.CombatRecord
	path := "/api/players/" + url.PathEscape(id) + "/history?limit=" + strconv.Itoa(limit)
	err := c.apiGet(ctx, path, &recs)
	return recs, err
}

func (c *Client) Explore(ctx context.Context, id, location string) (explore.Finding, error) {
	var f explore.Finding
	err := c.apiPost(ctx, "/api/players/"+url.PathEscape(id)+"/explore", server.ExploreRequest{Location: location}, &f)
	return f, err
}

func (c *Client) StartCombat(ctx context.Context, player, target string) (engine.Snapshot, error) {
	var snap engine.Snapshot
	err := c.apiPost(ctx, "/api/combat", server.StartCombatRequest{Player: player, Target: target}, &snap)
	return snap, err
}

// Combat returns the player's current combat; store.ErrNotFound when idle.
func (c *Client) Combat(ctx context.Context, player string) (engine.Snapshot, error) {
	var snap engine.Snapshot
	err := c.apiGet(ctx, "/api/combat/"+url.PathEscape(player), &snap)
	return snap, err
}

func (c *Client) Act(ctx context.Context, player string, req engine.Request) (engine.Snapshot, error) {
	var snap engine.Snapshot
	err := c.apiPost(ctx, "/api/combat/"+url.PathEscape(player)+"/actions", req, &snap)
	return snap, err
}

func (c *Client) Forfeit(ctx context.Context, player string) (engine.Result, error) {
	var res engine.Result
	err := c.do(ctx, http.MethodDelete, "/api/combat/"+url.PathEscape(player), nil, &res)
	return res, err
}

func (c *Client) PlayerStats(ctx context.Context, player string) (stats.Record, error) {
	var r stats.Record
	err := c.apiGet(ctx, "/api/stats/"+url.PathEscape(player), &r)
	return r, err
}

// DailyBestHit reports today's best hit; ok is false when nobody has landed one.
func (c *Client) DailyBestHit(ctx context.Context) (stats.Hit, bool, error) {
	var h stats.Hit
	if err := c.apiGet(ctx, "/api/stats/daily-best-hit", &h); err != nil {
		return stats.Hit{}, false, err
	}
	return h, h.Damage > 0, nil
}

func (c *Client) PatchPlayer(ctx context.Context, id string, patch models.VitalsPatch) (models.Player, error) {
	var p models.Player
	err := c.do(ctx, http.MethodPatch, "/api/admin/players/"+url.PathEscape(id), patch, &p)
	return p, err
}

func (c *Client) NewDay(ctx context.Context) error {
	return c.apiPost(ctx, "/api/admin/new-day", nil, nil)
}

// Reset forfeits every combat and restores the world; it returns the
// players whose combats were forfeited.
func (c *Client) Reset(ctx context.Context) ([]string, error) {
	var out struct {
		Forfeited []string `json:"forfeited"`
	}
	err := c.apiPost(ctx, "/api/admin/reset", nil, &out)
	return out.Forfeited, err
}
