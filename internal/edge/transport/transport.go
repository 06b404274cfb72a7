// Package transport abstracts the framed duplex channel between responder
// devices and the edge node. Any ordered, reliable text-frame transport
// satisfies the Conn contract; the shipped implementation is WebSocket.
package transport

import (
	"context"
	"errors"
)

var (
	// ErrClosed is returned by Send after the connection has closed.
	ErrClosed = errors.New("transport: connection closed")
	// ErrBufferFull is returned by Send when the peer's outbound buffer is
	// full. The frame is dropped; slow peers recover via snapshot on
	// reconnect rather than stalling the dispatcher.
	ErrBufferFull = errors.New("transport: send buffer full")
)

// Conn is one framed duplex channel.
//
// Send enqueues a frame for delivery and never blocks on peer I/O.
// Receive blocks until the next inbound frame, the context is done, or the
// connection closes. Close is idempotent.
type Conn interface {
	Send(data []byte) error
	Receive(ctx context.Context) ([]byte, error)
	Close() error
}
