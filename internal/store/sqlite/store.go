// Package sqlite provides a SQLite-backed game store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/pefman/rose-manor/internal/engine"
	"github.com/pefman/rose-manor/internal/models"
	"github.com/pefman/rose-manor/internal/store"
	"github.com/pefman/rose-manor/internal/store/sqlite/migrations"
)

// Store persists game state in SQLite.
type Store struct {
	sqlDB *sql.DB
}

var _ store.Store = (*Store)(nil)

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func toMillis(value time.Time) int64 {
	if value.IsZero() {
		return 0
	}
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	if value == 0 {
		return time.Time{}
	}
	return time.UnixMilli(value).UTC()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// dsnParams configures every pooled connection. Transactions begin IMMEDIATE
// so read-modify-write paths take the write lock up front and wait on
// busy_timeout instead of failing with SQLITE_BUSY on upgrade.
const dsnParams = "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate"

// Open opens a SQLite store, applies embedded migrations and seeds the item
// catalog and locations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + dsnParams
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	ctx := context.Background()
	if err := applyMigrations(ctx, sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	s := &Store{sqlDB: sqlDB}
	if err := s.seed(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("seed catalog: %w", err)
	}
	return s, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) seed(ctx context.Context) error {
	for _, it := range store.DefaultItems() {
		if _, err := s.sqlDB.ExecContext(ctx,
			`INSERT OR IGNORE INTO items (id, name, kind, rarity, description, strength, agility, luck, healing)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			it.ID, it.Name, it.Kind, it.Rarity, it.Description, it.Strength, it.Agility, it.Luck, it.Healing,
		); err != nil {
			return fmt.Errorf("seed item %s: %w", it.ID, err)
		}
	}
	for _, l := range store.DefaultLocations() {
		if _, err := s.sqlDB.ExecContext(ctx,
			`INSERT OR IGNORE INTO locations (id, name, description) VALUES (?, ?, ?)`,
			l.ID, l.Name, l.Description,
		); err != nil {
			return fmt.Errorf("seed location %s: %w", l.ID, err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

// Remaining returns the player's action points.
func (s *Store) Remaining(ctx context.Context, playerID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var ap int
	err := s.sqlDB.QueryRowContext(ctx, `SELECT action_points FROM players WHERE id = ?`, playerID).Scan(&ap)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("player %q: %w", playerID, store.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("read action points: %w", err)
	}
	return ap, nil
}

// Consume spends one action point; the decrement never goes below zero.
func (s *Store) Consume(ctx context.Context, playerID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE players SET action_points = action_points - 1 WHERE id = ? AND action_points > 0`, playerID)
	if err != nil {
		return fmt.Errorf("consume action point: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("consume action point: %w", err)
	}
	if n == 1 {
		return nil
	}
	if _, err := s.Remaining(ctx, playerID); err != nil {
		return err
	}
	return engine.ErrInsufficientResource
}

// CreatePlayer inserts a player along with any starting inventory and clues.
func (s *Store) CreatePlayer(ctx context.Context, p models.Player) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("player id is required")
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create player: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO players (id, name, hp, max_hp, sanity, max_sanity, strength, agility, luck,
		   is_alive, action_points, day, experience, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.HP, p.MaxHP, p.Sanity, p.MaxSanity, p.Strength, p.Agility, p.Luck,
		boolInt(p.Alive), p.ActionPoints, p.Day, p.Experience, toMillis(p.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("player %q: %w", p.ID, store.ErrExists)
		}
		return fmt.Errorf("create player: %w", err)
	}
	for _, it := range p.Inventory {
		if it.InstanceID == "" {
			it.InstanceID = uuid.NewString()
		}
		if err := insertItem(ctx, tx, p.ID, it); err != nil {
			return err
		}
	}
	for _, c := range p.Clues {
		if err := insertClue(ctx, tx, p.ID, c); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Player loads one player with inventory and clues.
func (s *Store) Player(ctx context.Context, id string) (models.Player, error) {
	if err := ctx.Err(); err != nil {
		return models.Player{}, err
	}
	return loadPlayer(ctx, s.sqlDB, id)
}

// Players lists every player ordered by id.
func (s *Store) Players(ctx context.Context) ([]models.Player, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT id FROM players ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan player id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	out := make([]models.Player, 0, len(ids))
	for _, id := range ids {
		p, err := loadPlayer(ctx, s.sqlDB, id)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// UpdatePlayer applies patch inside a transaction and returns the result.
func (s *Store) UpdatePlayer(ctx context.Context, id string, patch models.VitalsPatch) (models.Player, error) {
	if err := ctx.Err(); err != nil {
		return models.Player{}, err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return models.Player{}, fmt.Errorf("begin update player: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	p, err := loadPlayer(ctx, tx, id)
	if err != nil {
		return models.Player{}, err
	}
	patch.Apply(&p)
	if err := savePlayer(ctx, tx, p); err != nil {
		return models.Player{}, err
	}
	if patch.Inventory != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM inventory WHERE player_id = ?`, id); err != nil {
			return models.Player{}, fmt.Errorf("clear inventory: %w", err)
		}
		for i := range p.Inventory {
			if p.Inventory[i].InstanceID == "" {
				p.Inventory[i].InstanceID = uuid.NewString()
			}
			if err := insertItem(ctx, tx, id, p.Inventory[i]); err != nil {
				return models.Player{}, err
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return models.Player{}, fmt.Errorf("commit update player: %w", err)
	}
	return p, nil
}

// AddItem appends an item instance to the player's inventory.
func (s *Store) AddItem(ctx context.Context, playerID string, item models.Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.Remaining(ctx, playerID); err != nil {
		return err
	}
	if item.InstanceID == "" {
		item.InstanceID = uuid.NewString()
	}
	return insertItem(ctx, s.sqlDB, playerID, item)
}

// AddClue records a clue once per player.
func (s *Store) AddClue(ctx context.Context, playerID, clue string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.Remaining(ctx, playerID); err != nil {
		return err
	}
	return insertClue(ctx, s.sqlDB, playerID, clue)
}

// Items returns the catalog.
func (s *Store) Items(ctx context.Context) ([]models.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, name, kind, rarity, description, strength, agility, luck, healing FROM items ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()
	var out []models.Item
	for rows.Next() {
		var it models.Item
		if err := rows.Scan(&it.ID, &it.Name, &it.Kind, &it.Rarity, &it.Description,
			&it.Strength, &it.Agility, &it.Luck, &it.Healing); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// Location returns one location by id.
func (s *Store) Location(ctx context.Context, id string) (models.Location, error) {
	if err := ctx.Err(); err != nil {
		return models.Location{}, err
	}
	var l models.Location
	err := s.sqlDB.QueryRowContext(ctx, `SELECT id, name, description FROM locations WHERE id = ?`, id).
		Scan(&l.ID, &l.Name, &l.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Location{}, fmt.Errorf("location %q: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return models.Location{}, fmt.Errorf("get location: %w", err)
	}
	return l, nil
}

// Locations lists every location in seed order.
func (s *Store) Locations(ctx context.Context) ([]models.Location, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT id, name, description FROM locations ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	defer rows.Close()
	var out []models.Location
	for rows.Next() {
		var l models.Location
		if err := rows.Scan(&l.ID, &l.Name, &l.Description); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// ApplyCombat writes rec in one transaction. A session already recorded is
// left alone and reported as not applied.
func (s *Store) ApplyCombat(ctx context.Context, rec models.CombatRecord) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var dropJSON string
	if rec.Drop != nil {
		if rec.Drop.InstanceID == "" {
			rec.Drop.InstanceID = uuid.NewString()
		}
		b, err := json.Marshal(rec.Drop)
		if err != nil {
			return false, fmt.Errorf("encode drop: %w", err)
		}
		dropJSON = string(b)
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin apply combat: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO combat_records (session_id, player_id, opponent_id, outcome, rounds,
		   player_hp, player_sanity, player_alive, opponent_hp, opponent_alive, persist_opponent,
		   experience, drop_json, best_hit, ended_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.PlayerID, rec.OpponentID, rec.Outcome, rec.Rounds,
		rec.PlayerHP, rec.PlayerSanity, boolInt(rec.PlayerAlive), rec.OpponentHP, boolInt(rec.OpponentAlive),
		boolInt(rec.PersistOpponent), rec.Experience, dropJSON, rec.BestHit, toMillis(rec.EndedAt),
	)
	if err != nil {
		return false, fmt.Errorf("insert combat record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert combat record: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	player, err := loadPlayer(ctx, tx, rec.PlayerID)
	if err != nil {
		return false, err
	}
	var opponent *models.Player
	if rec.PersistOpponent {
		o, err := loadPlayer(ctx, tx, rec.OpponentID)
		if err != nil {
			return false, err
		}
		opponent = &o
	}
	store.ApplyRecord(&player, opponent, models.CombatRecord{
		PlayerHP: rec.PlayerHP, PlayerSanity: rec.PlayerSanity, PlayerAlive: rec.PlayerAlive,
		Experience: rec.Experience, PersistOpponent: rec.PersistOpponent,
		OpponentHP: rec.OpponentHP, OpponentAlive: rec.OpponentAlive,
	})
	if err := savePlayer(ctx, tx, player); err != nil {
		return false, err
	}
	if rec.Drop != nil {
		if err := insertItem(ctx, tx, rec.PlayerID, *rec.Drop); err != nil {
			return false, err
		}
	}
	if opponent != nil {
		if err := savePlayer(ctx, tx, *opponent); err != nil {
			return false, err
		}
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit apply combat: %w", err)
	}
	return true, nil
}

// CombatHistory returns the newest records involving playerID.
func (s *Store) CombatHistory(ctx context.Context, playerID string, limit int) ([]models.CombatRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT session_id, player_id, opponent_id, outcome, rounds, player_hp, player_sanity, player_alive,
		   opponent_hp, opponent_alive, persist_opponent, experience, drop_json, best_hit, ended_at
		 FROM combat_records WHERE player_id = ? OR opponent_id = ?
		 ORDER BY ended_at DESC, rowid DESC LIMIT ?`, playerID, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list combat records: %w", err)
	}
	defer rows.Close()
	var out []models.CombatRecord
	for rows.Next() {
		var (
			rec                                    models.CombatRecord
			playerAlive, oppAlive, persistOpponent int
			dropJSON                               string
			endedAt                                int64
		)
		if err := rows.Scan(&rec.SessionID, &rec.PlayerID, &rec.OpponentID, &rec.Outcome, &rec.Rounds,
			&rec.PlayerHP, &rec.PlayerSanity, &playerAlive, &rec.OpponentHP, &oppAlive, &persistOpponent,
			&rec.Experience, &dropJSON, &rec.BestHit, &endedAt); err != nil {
			return nil, fmt.Errorf("scan combat record: %w", err)
		}
		rec.PlayerAlive = playerAlive == 1
		rec.OpponentAlive = oppAlive == 1
		rec.PersistOpponent = persistOpponent == 1
		rec.EndedAt = fromMillis(endedAt)
		if dropJSON != "" {
			var it models.Item
			if err := json.Unmarshal([]byte(dropJSON), &it); err != nil {
				return nil, fmt.Errorf("decode drop: %w", err)
			}
			rec.Drop = &it
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// NewDay advances the day for every player.
func (s *Store) NewDay(ctx context.Context, actionPoints int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`UPDATE players SET
		   day = day + 1,
		   action_points = ?,
		   hp = CASE WHEN is_alive = 1 THEN MIN(max_hp, hp + ?) ELSE hp END,
		   sanity = CASE WHEN is_alive = 1 THEN MIN(max_sanity, sanity + ?) ELSE sanity END`,
		actionPoints, store.NewDayHP, store.NewDaySanity)
	if err != nil {
		return fmt.Errorf("new day: %w", err)
	}
	return nil
}

// ResetWorld restores every player and empties inventories and clues.
func (s *Store) ResetWorld(ctx context.Context, actionPoints int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reset: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	for _, q := range []struct {
		sql  string
		args []any
	}{
		{`UPDATE players SET hp = max_hp, sanity = max_sanity, is_alive = 1, action_points = ?`, []any{actionPoints}},
		{`DELETE FROM inventory`, nil},
		{`DELETE FROM clues`, nil},
	} {
		if _, err := tx.ExecContext(ctx, q.sql, q.args...); err != nil {
			return fmt.Errorf("reset world: %w", err)
		}
	}
	return tx.Commit()
}

func loadPlayer(ctx context.Context, q queryer, id string) (models.Player, error) {
	var (
		p         models.Player
		alive     int
		createdAt int64
	)
	err := q.QueryRowContext(ctx,
		`SELECT id, name, hp, max_hp, sanity, max_sanity, strength, agility, luck,
		   is_alive, action_points, day, experience, created_at
		 FROM players WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.HP, &p.MaxHP, &p.Sanity, &p.MaxSanity, &p.Strength, &p.Agility, &p.Luck,
			&alive, &p.ActionPoints, &p.Day, &p.Experience, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Player{}, fmt.Errorf("player %q: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return models.Player{}, fmt.Errorf("get player: %w", err)
	}
	p.Alive = alive == 1
	p.CreatedAt = fromMillis(createdAt)

	rows, err := q.QueryContext(ctx,
		`SELECT instance_id, item_id, name, kind, rarity, description, strength, agility, luck, healing,
		   obtained_at, from_location
		 FROM inventory WHERE player_id = ? ORDER BY rowid`, id)
	if err != nil {
		return models.Player{}, fmt.Errorf("list inventory: %w", err)
	}
	for rows.Next() {
		var (
			it         models.Item
			obtainedAt int64
		)
		if err := rows.Scan(&it.InstanceID, &it.ID, &it.Name, &it.Kind, &it.Rarity, &it.Description,
			&it.Strength, &it.Agility, &it.Luck, &it.Healing, &obtainedAt, &it.FromLocation); err != nil {
			_ = rows.Close()
			return models.Player{}, fmt.Errorf("scan inventory: %w", err)
		}
		it.ObtainedAt = fromMillis(obtainedAt)
		p.Inventory = append(p.Inventory, it)
	}
	if err := rows.Close(); err != nil {
		return models.Player{}, err
	}

	rows, err = q.QueryContext(ctx, `SELECT clue FROM clues WHERE player_id = ? ORDER BY rowid`, id)
	if err != nil {
		return models.Player{}, fmt.Errorf("list clues: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return models.Player{}, fmt.Errorf("scan clue: %w", err)
		}
		p.Clues = append(p.Clues, c)
	}
	return p, rows.Err()
}

func savePlayer(ctx context.Context, q queryer, p models.Player) error {
	_, err := q.ExecContext(ctx,
		`UPDATE players SET name = ?, hp = ?, max_hp = ?, sanity = ?, max_sanity = ?, strength = ?,
		   agility = ?, luck = ?, is_alive = ?, action_points = ?, day = ?, experience = ?
		 WHERE id = ?`,
		p.Name, p.HP, p.MaxHP, p.Sanity, p.MaxSanity, p.Strength, p.Agility, p.Luck,
		boolInt(p.Alive), p.ActionPoints, p.Day, p.Experience, p.ID)
	if err != nil {
		return fmt.Errorf("save player: %w", err)
	}
	return nil
}

func insertItem(ctx context.Context, q queryer, playerID string, it models.Item) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO inventory (instance_id, player_id, item_id, name, kind, rarity, description,
		   strength, agility, luck, healing, obtained_at, from_location)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		it.InstanceID, playerID, it.ID, it.Name, it.Kind, it.Rarity, it.Description,
		it.Strength, it.Agility, it.Luck, it.Healing, toMillis(it.ObtainedAt), it.FromLocation)
	if err != nil {
		return fmt.Errorf("insert inventory item: %w", err)
	}
	return nil
}

func insertClue(ctx context.Context, q queryer, playerID, clue string) error {
	if _, err := q.ExecContext(ctx,
		`INSERT OR IGNORE INTO clues (player_id, clue) VALUES (?, ?)`, playerID, clue); err != nil {
		return fmt.Errorf("insert clue: %w", err)
	}
	return nil
}
