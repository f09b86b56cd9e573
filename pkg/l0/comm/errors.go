package comm

import "errors"

var (
	// ErrPayloadTooLarge indicates the payload doesn't fit in a frame.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrTerminatorInPayload indicates the payload contains the frame
	// terminator and would be cut short by the receiver.
	ErrTerminatorInPayload = errors.New("terminator in payload")
	// ErrOutOfRange indicates a value can't be represented on the wire.
	ErrOutOfRange = errors.New("value out of range")
	// ErrClosed indicates the link is closed.
	ErrClosed = errors.New("link closed")
)
