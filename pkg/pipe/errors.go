package pipe

import "errors"

// Pipe errors.
var (
	// ErrPipeFull is returned when a send would exceed the pipe depth.
	ErrPipeFull = errors.New("pipe: full")

	// ErrTimeout is returned when no message arrives before the receive timeout.
	ErrTimeout = errors.New("pipe: receive timeout")

	// ErrPipeClosed is returned when the pipe has been deleted.
	ErrPipeClosed = errors.New("pipe: closed")

	// ErrPipeNotFound is returned when an ID does not name a pipe.
	ErrPipeNotFound = errors.New("pipe: not found")

	// ErrInvalidName is returned for an empty or overlong pipe name.
	ErrInvalidName = errors.New("pipe: invalid name")

	// ErrNameInUse is returned when another pipe already has the name.
	ErrNameInUse = errors.New("pipe: name in use")

	// ErrInvalidDepth is returned for a depth outside 1..MaxDepth.
	ErrInvalidDepth = errors.New("pipe: invalid depth")

	// ErrTooManyPipes is returned when the registry is at capacity.
	ErrTooManyPipes = errors.New("pipe: too many pipes")

	// ErrMessageTooLarge is returned when a message exceeds MaxMessageSize.
	ErrMessageTooLarge = errors.New("pipe: message too large")

	// ErrShortBuffer is returned when the receive buffer cannot hold the
	// next message. The message is discarded.
	ErrShortBuffer = errors.New("pipe: receive buffer too short")
)
