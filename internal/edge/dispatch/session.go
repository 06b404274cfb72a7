package dispatch

import (
	"fmt"

	"github.com/fireline/fireline/internal/edge/transport"
)

// sessionState is the per-connection handshake state.
type sessionState int

const (
	// stateAwaitingHello is the initial state; only CLIENT_HELLO is accepted.
	stateAwaitingHello sessionState = iota
	// stateJoined is after a successful handshake; data messages flow.
	stateJoined
	// stateClosed is terminal.
	stateClosed
)

// String returns the string representation of the state
func (s sessionState) String() string {
	switch s {
	case stateAwaitingHello:
		return "AwaitingHello"
	case stateJoined:
		return "Joined"
	case stateClosed:
		return "Closed"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// session is one connection's dispatcher-side state. It is only touched from
// that connection's read loop, so it needs no lock of its own.
type session struct {
	id          string
	conn        transport.Conn
	state       sessionState
	incidentID  string
	responderID string
}
