package conversation

import "errors"

var (
	// ErrTurnInFlight is returned when a session is already processing a turn.
	ErrTurnInFlight = errors.New("a turn is already in flight")
	// ErrMessageNotFound is returned for ids absent from the active log.
	ErrMessageNotFound = errors.New("message not found")
	// ErrWrongKind is returned when a message exists but is not of the kind the
	// interaction requires.
	ErrWrongKind = errors.New("wrong message kind")
	// ErrUnknownAction is returned for confirm actions the card does not offer.
	ErrUnknownAction = errors.New("unknown action")
	// ErrInvalidTicket is returned when a ticket draft is not good enough to file.
	ErrInvalidTicket = errors.New("invalid ticket")
)
