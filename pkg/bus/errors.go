package bus

import "errors"

// Bus errors.
var (
	// ErrClosed is returned when the bus has been shut down.
	ErrClosed = errors.New("bus: closed")

	// ErrInvalidConfig is returned by New for negative sizing values.
	ErrInvalidConfig = errors.New("bus: invalid config")

	// ErrAlreadySubscribed is returned when a pipe already receives a message ID.
	ErrAlreadySubscribed = errors.New("bus: already subscribed")

	// ErrNotSubscribed is returned when a pipe does not receive a message ID.
	ErrNotSubscribed = errors.New("bus: not subscribed")
)
