package msg

import "errors"

// Header codec errors.
var (
	// ErrBadArgument is returned for an absent or short buffer, or a value
	// outside a field's declared range. The buffer is never modified when
	// this error is returned.
	ErrBadArgument = errors.New("msg: bad argument")

	// ErrWrongMsgType is returned when a secondary-header accessor does not
	// match the message type (command accessor on telemetry or vice versa)
	// or the message has no secondary header.
	ErrWrongMsgType = errors.New("msg: wrong message type for operation")

	// ErrBufferTooShort is returned when the buffer is shorter than the
	// length its size field claims, or too short to hold a secondary header.
	ErrBufferTooShort = errors.New("msg: buffer shorter than declared size")
)
