package game

import "math"

const (
	damagePerStrength = 2
	spreadMin         = 0.8
	spreadWidth       = 0.4
	baseCritChance    = 0.1
	critPerLuck       = 0.01
	critMultiplier    = 1.5
	enragedMultiplier = 1.25
)

// CritChance is the probability that an attack by an actor with the given luck is critical.
func CritChance(luck int) float64 {
	return baseCritChance + float64(luck)*critPerLuck
}

// RollDamage resolves the attacker's damage. It always consumes exactly two draws
// (spread, then crit) so that seeded sequences stay aligned whether or not the
// crit is forced.
//
//  base = floor(strength*2 * uniform(0.8, 1.2))
//  crit when draw < 0.1 + luck*0.01, or when forced; crit damage = floor(base*1.5)
func RollDamage(r Roller, attacker Actor, forceCrit bool) Hit {
	spread := spreadMin + r.Float64()*spreadWidth
	base := int(math.Floor(float64(attacker.Strength*damagePerStrength) * spread))
	if base < 0 {
		base = 0
	}
	crit := r.Float64() < CritChance(attacker.Luck)
	if forceCrit {
		crit = true
	}
	dmg := base
	if crit {
		dmg = int(math.Floor(float64(base) * critMultiplier))
	}
	return Hit{Spread: spread, Base: base, Critical: crit, Damage: dmg}
}

// Defended halves incoming damage (integer floor).
func Defended(damage int) int { return damage / 2 }

// Enraged raises the damage of a taunted attacker by 25% (integer floor).
func Enraged(damage int) int {
	return int(math.Floor(float64(damage) * enragedMultiplier))
}

// ApplyDamage subtracts damage from hp, flooring at zero.
func ApplyDamage(hp, damage int) int {
	if damage < 0 {
		damage = 0
	}
	hp -= damage
	if hp < 0 {
		return 0
	}
	return hp
}
