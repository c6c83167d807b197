package engine

import (
	"fmt"
	"strings"
)

// State is the combat state machine position.
type State int

const (
	StateIdle State = iota
	StateActive
	StatePlayerTurn
	StateOpponentTurn
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StatePlayerTurn:
		return "player_turn"
	case StateOpponentTurn:
		return "opponent_turn"
	case StateEnded:
		return "ended"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText renders the state by name in JSON payloads.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	for k := StateIdle; k <= StateEnded; k++ {
		if k.String() == string(b) {
			*s = k
			return nil
		}
	}
	return fmt.Errorf("unknown combat state %q", b)
}

// Outcome is how a session ended.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeVictory
	OutcomeDefeat
	OutcomeEscaped
	OutcomeSurrendered
	OutcomeForfeited
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNone:
		return "none"
	case OutcomeVictory:
		return "victory"
	case OutcomeDefeat:
		return "defeat"
	case OutcomeEscaped:
		return "escaped"
	case OutcomeSurrendered:
		return "surrendered"
	case OutcomeForfeited:
		return "forfeited"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

func (o Outcome) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

func (o *Outcome) UnmarshalText(b []byte) error {
	for k := OutcomeNone; k <= OutcomeForfeited; k++ {
		if k.String() == string(b) {
			*o = k
			return nil
		}
	}
	return fmt.Errorf("unknown combat outcome %q", b)
}

// Action is a player-chosen combat move.
type Action string

const (
	ActionAttack    Action = "attack"
	ActionDefend    Action = "defend"
	ActionEscape    Action = "escape"
	ActionSurrender Action = "surrender"
	ActionRest      Action = "rest"
	ActionTaunt     Action = "taunt"
	ActionFocus     Action = "focus"
)

// Actions lists every player action in menu order.
var Actions = []Action{ActionAttack, ActionDefend, ActionEscape, ActionSurrender, ActionRest, ActionTaunt, ActionFocus}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	for _, k := range Actions {
		if a == k {
			return true
		}
	}
	return false
}

// ParseAction maps a client-supplied identifier onto an Action.
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	if !a.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidAction, s)
	}
	return a, nil
}
