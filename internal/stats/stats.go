package stats

import (
	"sync"
	"time"
)

// Record is the tally for one player.
type Record struct {
	Fights     int `json:"fights"`
	Victories  int `json:"victories"`
	Defeats    int `json:"defeats"`
	Escapes    int `json:"escapes"`
	Surrenders int `json:"surrenders"`
	Forfeits   int `json:"forfeits"`
	Experience int `json:"experience"`
	BestHit    int `json:"best_hit"`
}

// Hit is a daily best-hit entry.
type Hit struct {
	PlayerID string    `json:"player_id"`
	Player   string    `json:"player"`
	Opponent string    `json:"opponent"`
	Damage   int       `json:"damage"`
	Rounds   int       `json:"rounds"`
	At       time.Time `json:"at"`
}

// Fight is what the tracker needs to know about a finished combat.
type Fight struct {
	PlayerID   string
	Player     string
	Opponent   string
	Outcome    string // victory, defeat, escaped, surrendered, forfeited
	Rounds     int
	Experience int
	BestHit    int
}

// Tracker keeps per-player records and the global best hit per UTC day.
type Tracker struct {
	mu       sync.Mutex
	now      func() time.Time
	players  map[string]Record
	dailyMax map[string]Hit // by date string YYYY-MM-DD UTC
}

func NewTracker(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{now: now, players: make(map[string]Record), dailyMax: make(map[string]Hit)}
}

func dateKey(t time.Time) string { return t.UTC().Format("2006-01-02") }

// Add folds a finished fight into the player's record and, when its best hit
// beats today's, into the daily max. Ties keep the fewer-rounds hit.
func (t *Tracker) Add(f Fight) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r := t.players[f.PlayerID]
	r.Fights++
	switch f.Outcome {
	case "victory":
		r.Victories++
	case "defeat":
		r.Defeats++
	case "escaped":
		r.Escapes++
	case "surrendered":
		r.Surrenders++
	case "forfeited":
		r.Forfeits++
	}
	r.Experience += f.Experience
	if f.BestHit > r.BestHit {
		r.BestHit = f.BestHit
	}
	t.players[f.PlayerID] = r

	if f.BestHit <= 0 {
		return
	}
	now := t.now()
	key := dateKey(now)
	hit := Hit{PlayerID: f.PlayerID, Player: f.Player, Opponent: f.Opponent, Damage: f.BestHit, Rounds: f.Rounds, At: now.UTC()}
	cur, ok := t.dailyMax[key]
	if !ok || hit.Damage > cur.Damage || (hit.Damage == cur.Damage && hit.Rounds < cur.Rounds) {
		t.dailyMax[key] = hit
	}
}

// Player returns the record for id; the zero Record when none exists.
func (t *Tracker) Player(id string) Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.players[id]
}

// BestHitToday returns today's best hit, if any.
func (t *Tracker) BestHitToday() (Hit, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.dailyMax[dateKey(t.now())]
	return h, ok
}
