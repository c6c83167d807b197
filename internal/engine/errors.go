package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCombatStart covers a dead or missing participant and starts the engine refuses.
	ErrInvalidCombatStart = errors.New("invalid combat start")
	// ErrCombatAlreadyInProgress is returned when the engine already runs a session.
	ErrCombatAlreadyInProgress = fmt.Errorf("%w: combat already in progress", ErrInvalidCombatStart)
	// ErrNotYourTurn is returned for actions attempted outside their valid state.
	ErrNotYourTurn = errors.New("not your turn")
	// ErrInsufficientResource is returned when the player has no action points left.
	ErrInsufficientResource = errors.New("insufficient action points")
	// ErrInvalidAction is returned for unknown action identifiers.
	ErrInvalidAction = errors.New("invalid action")
	// ErrSurrenderNotConfirmed is returned when a surrender arrives without confirmation.
	ErrSurrenderNotConfirmed = fmt.Errorf("%w: surrender requires confirmation", ErrInvalidAction)
)
