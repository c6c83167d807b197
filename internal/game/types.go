package game

// Actor captures the vitals and stats a combat resolution needs
type Actor struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	HP        int    `json:"hp"`
	MaxHP     int    `json:"max_hp"`
	Sanity    int    `json:"sanity"`
	MaxSanity int    `json:"max_sanity"` // 0 when the actor does not track sanity
	Strength  int    `json:"strength"`
	Agility   int    `json:"agility"` // a.k.a. dexterity
	Luck      int    `json:"luck"`
	Alive     bool   `json:"is_alive"`
}

// TracksSanity reports whether sanity penalties and restores apply to the actor.
func (a Actor) TracksSanity() bool { return a.MaxSanity > 0 }

// Roller yields uniform draws in [0,1). *math/rand.Rand satisfies it.
type Roller interface {
	Float64() float64
}

// Hit captures one resolved damage roll
type Hit struct {
	Spread   float64 `json:"spread"`   // multiplier applied to the base, in [0.8, 1.2]
	Base     int     `json:"base"`     // floored damage before the crit multiplier
	Critical bool    `json:"critical"`
	Damage   int     `json:"damage"`
}

// Drain describes a vitals loss or gain applied to one actor
type Drain struct {
	HPBefore     int `json:"hp_before"`
	HPAfter      int `json:"hp_after"`
	SanityBefore int `json:"sanity_before"`
	SanityAfter  int `json:"sanity_after"`
}

// HPDelta is the signed change in HP.
func (d Drain) HPDelta() int { return d.HPAfter - d.HPBefore }

// SanityDelta is the signed change in sanity.
func (d Drain) SanityDelta() int { return d.SanityAfter - d.SanityBefore }
