package bridge

import "errors"

// Domain errors for the bridge package.
var (
	// ErrInvalidIntent is returned when an intent carries a level outside
	// the accepted range for its field, an unknown scale, or a state
	// token that is neither ON nor OFF. The device is never contacted.
	ErrInvalidIntent = errors.New("bridge: invalid intent")

	// ErrUnknownField is returned when an intent names a field the
	// dispatcher has no handler for.
	ErrUnknownField = errors.New("bridge: unknown field")
)
