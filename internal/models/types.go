package models

import (
	"time"

	"github.com/pefman/rose-manor/internal/game"
)

// ========================= Domain Models =========================
// Persistent shapes. Combat works on game.Actor snapshots mapped from these.

// Defaults for a freshly created character.
const (
	DefaultHP           = 100
	DefaultSanity       = 100
	DefaultStrength     = 10
	DefaultAgility      = 10
	DefaultLuck         = 5
	DefaultActionPoints = 10
)

type Item struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Kind        string `json:"kind"` // weapon, armor, accessory, consumable, clue
	Rarity      string `json:"rarity,omitempty"`
	Description string `json:"description,omitempty"`
	Strength    int    `json:"strength,omitempty"`
	Agility     int    `json:"agility,omitempty"`
	Luck        int    `json:"luck,omitempty"`
	Healing     int    `json:"healing,omitempty"`

	// Instance fields, set once the item is in an inventory.
	InstanceID   string    `json:"instance_id,omitempty"`
	ObtainedAt   time.Time `json:"obtained_at,omitempty"`
	FromLocation string    `json:"from_location,omitempty"`
}

type Location struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type Player struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	HP           int       `json:"hp"`
	MaxHP        int       `json:"max_hp"`
	Sanity       int       `json:"sanity"`
	MaxSanity    int       `json:"max_sanity"`
	Strength     int       `json:"strength"`
	Agility      int       `json:"agility"`
	Luck         int       `json:"luck"`
	Alive        bool      `json:"is_alive"`
	ActionPoints int       `json:"action_points"`
	Day          int       `json:"day"`
	Experience   int       `json:"experience"`
	Clues        []string  `json:"clues,omitempty"`
	Inventory    []Item    `json:"inventory,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewPlayer returns a character with the starting stats.
func NewPlayer(id, name string, now time.Time) Player {
	return Player{
		ID:           id,
		Name:         name,
		HP:           DefaultHP,
		MaxHP:        DefaultHP,
		Sanity:       DefaultSanity,
		MaxSanity:    DefaultSanity,
		Strength:     DefaultStrength,
		Agility:      DefaultAgility,
		Luck:         DefaultLuck,
		Alive:        true,
		ActionPoints: DefaultActionPoints,
		Day:          1,
		CreatedAt:    now.UTC(),
	}
}

// Actor maps the player onto the combat snapshot.
func (p Player) Actor() game.Actor {
	return game.Actor{
		ID:        p.ID,
		Name:      p.Name,
		HP:        p.HP,
		MaxHP:     p.MaxHP,
		Sanity:    p.Sanity,
		MaxSanity: p.MaxSanity,
		Strength:  p.Strength,
		Agility:   p.Agility,
		Luck:      p.Luck,
		Alive:     p.Alive,
	}
}

// VitalsPatch is a partial update; nil fields are left unchanged.
type VitalsPatch struct {
	Name         *string `json:"name,omitempty"`
	HP           *int    `json:"hp,omitempty"`
	MaxHP        *int    `json:"max_hp,omitempty"`
	Sanity       *int    `json:"sanity,omitempty"`
	MaxSanity    *int    `json:"max_sanity,omitempty"`
	Strength     *int    `json:"strength,omitempty"`
	Agility      *int    `json:"agility,omitempty"`
	Luck         *int    `json:"luck,omitempty"`
	Alive        *bool   `json:"is_alive,omitempty"`
	ActionPoints *int    `json:"action_points,omitempty"`
	Experience   *int    `json:"experience,omitempty"`

	// Inventory replaces the whole inventory when non-nil.
	Inventory *[]Item `json:"inventory,omitempty"`
}

// Apply writes the set fields onto p, clamping vitals into range and keeping
// isAlive consistent with HP and sanity.
func (v VitalsPatch) Apply(p *Player) {
	set := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	if v.Name != nil {
		p.Name = *v.Name
	}
	set(&p.MaxHP, v.MaxHP)
	set(&p.HP, v.HP)
	set(&p.MaxSanity, v.MaxSanity)
	set(&p.Sanity, v.Sanity)
	set(&p.Strength, v.Strength)
	set(&p.Agility, v.Agility)
	set(&p.Luck, v.Luck)
	set(&p.ActionPoints, v.ActionPoints)
	set(&p.Experience, v.Experience)
	if v.Inventory != nil {
		p.Inventory = append([]Item(nil), (*v.Inventory)...)
	}
	if p.MaxHP < 1 {
		p.MaxHP = 1
	}
	if p.MaxSanity < 0 {
		p.MaxSanity = 0
	}
	p.HP = clamp(0, p.MaxHP, p.HP)
	p.Sanity = clamp(0, p.MaxSanity, p.Sanity)
	if p.ActionPoints < 0 {
		p.ActionPoints = 0
	}
	if v.Alive != nil {
		p.Alive = *v.Alive
	}
	if p.HP == 0 || (p.MaxSanity > 0 && p.Sanity == 0) {
		p.Alive = false
	}
}

func clamp(lo, hi, v int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// CombatRecord is the persisted consequence of one finished combat. Applying
// the same SessionID twice is a no-op.
type CombatRecord struct {
	SessionID     string `json:"session_id"`
	PlayerID      string `json:"player_id"`
	OpponentID    string `json:"opponent_id"`
	Outcome       string `json:"outcome"`
	Rounds        int    `json:"rounds"`
	PlayerHP      int    `json:"player_hp"`
	PlayerSanity  int    `json:"player_sanity"`
	PlayerAlive   bool   `json:"player_alive"`
	OpponentHP    int    `json:"opponent_hp"`
	OpponentAlive bool   `json:"opponent_alive"`

	// PersistOpponent is set when the opponent's vitals changed in a way the
	// store must write back (the opponent was killed).
	PersistOpponent bool      `json:"persist_opponent"`
	Experience      int       `json:"experience"`
	Drop            *Item     `json:"drop,omitempty"`
	BestHit         int       `json:"best_hit"`
	EndedAt         time.Time `json:"ended_at"`
}

// WebSocket message structure
type WsMsg struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}
