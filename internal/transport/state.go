package transport

import (
	"errors"
	"fmt"
	"time"
)

// State is the lifecycle position of the managed connection.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
	GivenUp
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case GivenUp:
		return "given_up"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Status is a snapshot of the manager, suitable for rendering a connection
// indicator. Delay is only set while Reconnecting.
type Status struct {
	State     State
	Delay     time.Duration
	Attempt   int
	LastError error
}

// ErrGivenUp is delivered on Errors() when the manager stops retrying.
var ErrGivenUp = errors.New("transport: gave up reconnecting")

// NotConnectedError is returned by Send when the connection is not open.
// Nothing is transmitted or queued.
type NotConnectedError struct {
	State State
}

func (e *NotConnectedError) Error() string {
	return fmt.Sprintf("transport: not connected (%s)", e.State)
}
