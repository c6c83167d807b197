package game

const (
	escapeBase       = 0.4
	escapePerAgility = 0.02
	escapePerLuck    = 0.01
	escapePerAttempt = 0.1
	escapeMinChance  = 0.1
	escapeMaxChance  = 0.9

	escapeHPLossPct     = 10
	escapeSanityLossPct = 5
	surrenderHPLossPct  = 80
	surrenderSanityLoss = 50
	restHPPct           = 10
	restSanityPct       = 5

	baseReward     = 50
	rewardPerRound = 5
	baseDropChance = 0.3
	dropPerLuck    = 0.01
)

// EscapeChance returns clamp(0.4 + agility*0.02 + luck*0.01 - attempts*0.1, 0.1, 0.9).
// attempts counts the attempt being rolled.
func EscapeChance(agility, luck, attempts int) float64 {
	c := escapeBase + float64(agility)*escapePerAgility + float64(luck)*escapePerLuck - float64(attempts)*escapePerAttempt
	if c < escapeMinChance {
		return escapeMinChance
	}
	if c > escapeMaxChance {
		return escapeMaxChance
	}
	return c
}

// penalize removes pct percent of v (at least 1 point) and never goes below 1.
// Values already at or below 1 are returned unchanged.
func penalize(v, pct int) int {
	if v <= 1 {
		return v
	}
	loss := v * pct / 100
	if loss < 1 {
		loss = 1
	}
	v -= loss
	if v < 1 {
		v = 1
	}
	return v
}

// EscapePenalty applies the cost of a successful escape: 10% of current HP and
// 5% of current sanity, each result floored at 1.
func EscapePenalty(a Actor) Drain {
	return drain(a, escapeHPLossPct, escapeSanityLossPct)
}

// SurrenderPenalty applies the cost of surrendering: 80% of current HP and 50%
// of current sanity, each result floored at 1.
func SurrenderPenalty(a Actor) Drain {
	return drain(a, surrenderHPLossPct, surrenderSanityLoss)
}

func drain(a Actor, hpPct, sanPct int) Drain {
	d := Drain{HPBefore: a.HP, HPAfter: penalize(a.HP, hpPct), SanityBefore: a.Sanity, SanityAfter: a.Sanity}
	if a.TracksSanity() {
		d.SanityAfter = penalize(a.Sanity, sanPct)
	}
	return d
}

// Rest restores 10% of max HP and 5% of max sanity, capped at the maximums.
func Rest(a Actor) Drain {
	d := Drain{HPBefore: a.HP, SanityBefore: a.Sanity, SanityAfter: a.Sanity}
	d.HPAfter = capAt(a.HP+a.MaxHP*restHPPct/100, a.MaxHP)
	if a.TracksSanity() {
		d.SanityAfter = capAt(a.Sanity+a.MaxSanity*restSanityPct/100, a.MaxSanity)
	}
	return d
}

// Heal adds amount to v without exceeding max.
func Heal(v, amount, max int) int { return capAt(v+amount, max) }

func capAt(v, max int) int {
	if v > max {
		return max
	}
	if v < 0 {
		return 0
	}
	return v
}

// Reward is the experience granted for a victory ending in the given round.
func Reward(round int) int { return baseReward + round*rewardPerRound }

// DropChance is the probability that a victory yields an item.
func DropChance(luck int) float64 { return baseDropChance + float64(luck)*dropPerLuck }
