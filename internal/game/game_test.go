package game

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

type fixed []float64

func (f *fixed) Float64() float64 {
	v := (*f)[0]
	*f = (*f)[1:]
	return v
}

func draws(v ...float64) *fixed { f := fixed(v); return &f }

func TestRollDamageMaxSpreadNoCrit(t *testing.T) {
	a := Actor{Name: "Alice", Strength: 10, Luck: 0}
	hit := RollDamage(draws(1.0, 1.0), a, false)
	assert.Equal(t, 24, hit.Damage)
	assert.Equal(t, 24, hit.Base)
	assert.False(t, hit.Critical)
}

func TestRollDamageCritical(t *testing.T) {
	a := Actor{Strength: 10, Luck: 5}
	// crit chance 0.15
	hit := RollDamage(draws(0.5, 0.149), a, false)
	assert.True(t, hit.Critical)
	assert.Equal(t, 30, hit.Damage)

	hit = RollDamage(draws(0.5, 0.16), a, false)
	assert.False(t, hit.Critical)
	assert.Equal(t, 20, hit.Damage)

	hit = RollDamage(draws(0.5, 0.99), a, true)
	assert.True(t, hit.Critical)
	assert.Equal(t, 30, hit.Damage)
}

func TestRollDamageProperties(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		a := Actor{
			Strength: rapid.IntRange(-10, 200).Draw(rt, "strength"),
			Luck:     rapid.IntRange(-50, 100).Draw(rt, "luck"),
		}
		spread := rapid.Float64Range(0, 1).Draw(rt, "spread")
		crit := rapid.Float64Range(0, 1).Draw(rt, "crit")
		hit := RollDamage(draws(spread, crit), a, false)

		assert.GreaterOrEqual(rt, hit.Damage, 0)
		assert.Equal(rt, crit < CritChance(a.Luck), hit.Critical)
		if hit.Critical {
			assert.Equal(rt, int(math.Floor(float64(hit.Base)*1.5)), hit.Damage)
		} else {
			assert.Equal(rt, hit.Base, hit.Damage)
		}
	})
}

func TestApplyDamage(t *testing.T) {
	assert.Equal(t, 76, ApplyDamage(100, 24))
	assert.Equal(t, 0, ApplyDamage(5, 24))
	assert.Equal(t, 5, ApplyDamage(5, -3))
}

func TestDefendedAndEnraged(t *testing.T) {
	assert.Equal(t, 12, Defended(25))
	assert.Equal(t, 0, Defended(1))
	assert.Equal(t, 25, Enraged(20))
	assert.Equal(t, 1, Enraged(1))
}

func TestEscapeChance(t *testing.T) {
	assert.InDelta(t, 0.3, EscapeChance(0, 0, 1), 1e-9)
	assert.InDelta(t, 0.1, EscapeChance(0, 0, 5), 1e-9)
	assert.InDelta(t, 0.9, EscapeChance(100, 100, 1), 1e-9)
	assert.InDelta(t, 0.55, EscapeChance(10, 5, 1), 1e-9)
}

func TestEscapeChanceAlwaysClamped(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		agi := rapid.IntRange(-1_000_000, 1_000_000).Draw(rt, "agility")
		luck := rapid.IntRange(-1_000_000, 1_000_000).Draw(rt, "luck")
		attempts := rapid.IntRange(0, 10_000).Draw(rt, "attempts")
		c := EscapeChance(agi, luck, attempts)
		assert.GreaterOrEqual(rt, c, 0.1)
		assert.LessOrEqual(rt, c, 0.9)
	})
}

func TestEscapePenalty(t *testing.T) {
	d := EscapePenalty(Actor{HP: 50, MaxHP: 100, Sanity: 40, MaxSanity: 100})
	assert.Equal(t, 45, d.HPAfter)
	assert.Equal(t, 38, d.SanityAfter)

	d = EscapePenalty(Actor{HP: 1, MaxHP: 100, Sanity: 1, MaxSanity: 100})
	assert.Equal(t, 1, d.HPAfter)
	assert.Equal(t, 1, d.SanityAfter)

	d = EscapePenalty(Actor{HP: 5, MaxHP: 100, Sanity: 7, MaxSanity: 100})
	assert.Equal(t, 4, d.HPAfter, "small pools still lose a point")
	assert.Equal(t, 6, d.SanityAfter)

	d = EscapePenalty(Actor{HP: 30, MaxHP: 100})
	assert.Equal(t, 0, d.SanityAfter, "untracked sanity is left alone")
}

func TestPenaltiesStrictlyDecreaseAndFloorAtOne(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		maxHP := rapid.IntRange(1, 10_000).Draw(rt, "max_hp")
		maxSan := rapid.IntRange(1, 10_000).Draw(rt, "max_san")
		a := Actor{
			HP:        rapid.IntRange(1, maxHP).Draw(rt, "hp"),
			MaxHP:     maxHP,
			Sanity:    rapid.IntRange(1, maxSan).Draw(rt, "san"),
			MaxSanity: maxSan,
		}
		for _, d := range []Drain{EscapePenalty(a), SurrenderPenalty(a)} {
			assert.GreaterOrEqual(rt, d.HPAfter, 1)
			assert.GreaterOrEqual(rt, d.SanityAfter, 1)
			if a.HP > 1 {
				assert.Less(rt, d.HPAfter, a.HP)
			}
			if a.Sanity > 1 {
				assert.Less(rt, d.SanityAfter, a.Sanity)
			}
		}
		s := SurrenderPenalty(a)
		assert.Equal(rt, max(1, a.HP-a.HP*80/100), s.HPAfter)
		assert.Equal(rt, max(1, a.Sanity-a.Sanity*50/100), s.SanityAfter)
	})
}

func TestSurrenderPenalty(t *testing.T) {
	d := SurrenderPenalty(Actor{HP: 100, MaxHP: 100, Sanity: 100, MaxSanity: 100})
	assert.Equal(t, 20, d.HPAfter)
	assert.Equal(t, 50, d.SanityAfter)
	assert.Equal(t, -80, d.HPDelta())
	assert.Equal(t, -50, d.SanityDelta())
}

func TestRest(t *testing.T) {
	d := Rest(Actor{HP: 50, MaxHP: 100, Sanity: 40, MaxSanity: 100})
	assert.Equal(t, 60, d.HPAfter)
	assert.Equal(t, 45, d.SanityAfter)

	d = Rest(Actor{HP: 95, MaxHP: 100, Sanity: 99, MaxSanity: 100})
	assert.Equal(t, 100, d.HPAfter)
	assert.Equal(t, 100, d.SanityAfter)
}

func TestRewards(t *testing.T) {
	assert.Equal(t, 55, Reward(1))
	assert.Equal(t, 100, Reward(10))
	assert.InDelta(t, 0.35, DropChance(5), 1e-9)
}
