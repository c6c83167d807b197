package engine

import "github.com/pefman/rose-manor/internal/game"

// opponentAttackWeight is the share of opponent turns spent attacking; the
// rest are spent defending.
const opponentAttackWeight = 0.7

// opponentTurn runs the AI reply and, unless the player died, opens the next round.
func (e *Engine) opponentTurn() {
	s := e.session
	s.State = StateOpponentTurn
	e.logf("Round %d - %s's turn", s.Round, s.Opponent.Name)
	// A guard raised last turn that the player never tested lapses now.
	s.OpponentDefending = false

	taunted := s.Taunted
	s.Taunted = false
	if taunted || e.rng.Float64() < opponentAttackWeight {
		if e.opponentAttack(true, taunted) {
			return
		}
	} else {
		s.OpponentDefending = true
		e.logf("%s raises a guard", s.Opponent.Name)
	}
	e.nextRound()
}

// opponentAttack strikes the player. guarded applies the player's defense
// flag; enraged applies the taunt bonus. It reports whether the player died.
func (e *Engine) opponentAttack(guarded, enraged bool) bool {
	s := e.session
	hit := game.RollDamage(e.rng, s.Opponent, false)
	dmg := hit.Damage
	if enraged {
		dmg = game.Enraged(dmg)
		e.logf("%s attacks in a rage", s.Opponent.Name)
	}
	if guarded && s.PlayerDefending {
		dmg = game.Defended(dmg)
		s.PlayerDefending = false
		e.logf("%s's defense halves the damage", s.Player.Name)
	}
	s.Player.HP = game.ApplyDamage(s.Player.HP, dmg)
	e.logHit(s.Opponent.Name, hit.Critical, dmg)
	if s.Player.HP == 0 {
		e.defeat()
		return true
	}
	return false
}

func (e *Engine) nextRound() {
	s := e.session
	s.Round++
	// An unused stance does not carry into the new round.
	s.PlayerDefending = false
	e.startPlayerTurn()
}
