package senseme

import "errors"

// Domain errors for the SenseME protocol package.
var (
	// ErrClosed is returned when an operation is attempted on a session
	// that has been closed.
	ErrClosed = errors.New("senseme: session closed")

	// ErrConnectFailed is returned when the UDP socket cannot be
	// allocated or the device address cannot be resolved.
	ErrConnectFailed = errors.New("senseme: connect failed")

	// ErrNotConnected is returned when an operation requires a socket
	// but none is open.
	ErrNotConnected = errors.New("senseme: not connected")

	// ErrSendFailed is returned when a command datagram cannot be
	// written to the socket.
	ErrSendFailed = errors.New("senseme: send failed")

	// ErrReceiveFailed is returned when reading a reply datagram fails
	// for a reason other than the deadline expiring.
	ErrReceiveFailed = errors.New("senseme: receive failed")

	// ErrTimeout is returned when no reply arrives before the receive
	// deadline.
	ErrTimeout = errors.New("senseme: reply timed out")

	// ErrMalformedReply is returned when a reply frame cannot be
	// decoded or carries a value outside the attribute's scale.
	ErrMalformedReply = errors.New("senseme: malformed reply")

	// ErrValueOutOfRange is returned when a setter argument is outside
	// the device's raw scale. The device is never contacted.
	ErrValueOutOfRange = errors.New("senseme: value out of range")

	// ErrInvalidState is returned when a power token is neither ON nor
	// OFF.
	ErrInvalidState = errors.New("senseme: invalid power state")
)
