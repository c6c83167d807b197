package engine

import (
	"fmt"
	"time"

	"github.com/pefman/rose-manor/internal/game"
)

// LogEntry is one timestamped line of the combat log.
type LogEntry struct {
	At      time.Time `json:"at"`
	Message string    `json:"message"`
}

func (l LogEntry) String() string {
	return fmt.Sprintf("[%s] %s", l.At.Format("15:04:05"), l.Message)
}

// Session is the mutable record of one combat encounter.
type Session struct {
	ID                string     `json:"id"`
	Player            game.Actor `json:"player"`
	Opponent          game.Actor `json:"opponent"`
	Round             int        `json:"round"`
	State             State      `json:"state"`
	PlayerDefending   bool       `json:"player_defending"`
	OpponentDefending bool       `json:"opponent_defending"`
	EscapeAttempts    int        `json:"escape_attempts"`
	Taunted           bool       `json:"taunted"` // opponent must attack on its next turn
	Focused           bool       `json:"focused"` // player's next attack is a critical
	Log               []LogEntry `json:"log"`
	StartedAt         time.Time  `json:"started_at"`
}

func (s *Session) clone() *Session {
	c := *s
	c.Log = append([]LogEntry(nil), s.Log...)
	return &c
}

// Result is the terminal outcome of a session. The caller persists it.
type Result struct {
	SessionID  string      `json:"session_id"`
	Outcome    Outcome     `json:"outcome"`
	Rounds     int         `json:"rounds"`
	Player     game.Actor  `json:"player"`
	Opponent   game.Actor  `json:"opponent"`
	Experience int         `json:"experience,omitempty"`
	ItemDrop   bool        `json:"item_drop,omitempty"`
	Penalty    *game.Drain `json:"penalty,omitempty"`
	BestHit    int         `json:"best_hit"` // largest damage the player dealt
}

// Snapshot is a read-only copy of the engine's position.
type Snapshot struct {
	State   State    `json:"state"`
	Session *Session `json:"session,omitempty"`
	Result  *Result  `json:"result,omitempty"`
}
