package bus

import "errors"

var (
	// ErrTimeout is returned when no responder answers a query within the
	// configured request timeout.
	ErrTimeout = errors.New("bus: query timed out")

	// ErrRemote is returned when a responder answers a query with an error.
	ErrRemote = errors.New("bus: responder reported error")

	// ErrBadReply is returned when a reply cannot be decoded.
	ErrBadReply = errors.New("bus: malformed reply")
)
