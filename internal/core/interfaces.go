package core

import "errors"

//go:generate mockgen -source=interfaces.go -destination=mocks/mock_interfaces.go -package=mocks

var (
	// ErrBackpressure is returned by TrySend when the outbound queue is full.
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

// Frame is a raw encoded message.
type Frame []byte

// SignalConnection abstracts the messaging transport of a single endpoint.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	// TrySend queues f without blocking.
	TrySend(Frame) error
	// Alive is the liveness probe used by the sweep.
	Alive() bool
	Close()
}
