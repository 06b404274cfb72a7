package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const (
	// sendBuffer bounds the outbound queue per connection. When it fills,
	// further Sends drop (documented loss; the peer resyncs via snapshot).
	sendBuffer   = 64
	writeTimeout = 10 * time.Second
)

// WSConn adapts a WebSocket connection to the Conn interface. A single write
// pump goroutine owns all writes, so Send is safe from any goroutine and
// never blocks on the peer.
type WSConn struct {
	ws        *websocket.Conn
	sendCh    chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewWSConn wraps an accepted or dialed WebSocket connection and starts its
// write pump.
func NewWSConn(ws *websocket.Conn) *WSConn {
	c := &WSConn{
		ws:     ws,
		sendCh: make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}
	go c.writePump()
	return c
}

// Dial connects to an edge node message channel.
func Dial(ctx context.Context, url string) (*WSConn, error) {
	ws, _, err := websocket.Dial(ctx, url, nil) //nolint:bodyclose // handled by websocket.Conn
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return NewWSConn(ws), nil
}

func (c *WSConn) writePump() {
	for {
		select {
		case data := <-c.sendCh:
			ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			err := c.ws.Write(ctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				_ = c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// Send enqueues a text frame. It returns ErrClosed after Close and
// ErrBufferFull when the outbound queue is saturated.
func (c *WSConn) Send(data []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.sendCh <- data:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		return ErrBufferFull
	}
}

// Receive blocks for the next inbound frame.
func (c *WSConn) Receive(ctx context.Context) ([]byte, error) {
	_, data, err := c.ws.Read(ctx)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Close shuts the connection down. Safe to call more than once.
func (c *WSConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close(websocket.StatusNormalClosure, "")
	})
	return nil
}
