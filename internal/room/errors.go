package room

import (
	"errors"
	"fmt"
)

var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrRoomExists         = errors.New("room already exists")
	ErrRoomFull           = errors.New("room is full")
	ErrGameAlreadyStarted = errors.New("game has already started")
	ErrNotEnoughPlayers   = errors.New("not enough players to start")
	ErrNotHost            = errors.New("only the host can do that")
	ErrNotInRoom          = errors.New("player is not in this room")
	ErrUnknownGame        = errors.New("unknown game")
)

// IllegalActionError rejects a game action that is out of turn, out of
// phase, or malformed. It is a typed error rather than a silent no-op so
// callers and tests can assert on it.
type IllegalActionError struct {
	Reason string
}

func (e *IllegalActionError) Error() string {
	return "illegal action: " + e.Reason
}

// Illegalf builds an IllegalActionError from a format string.
func Illegalf(format string, args ...any) *IllegalActionError {
	return &IllegalActionError{Reason: fmt.Sprintf(format, args...)}
}

// IsIllegal reports whether err is an IllegalActionError.
func IsIllegal(err error) bool {
	var iae *IllegalActionError
	return errors.As(err, &iae)
}
