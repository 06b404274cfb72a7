// Package responder is the client-side session: it dials the edge node,
// performs the handshake, feeds broadcasts to the view, and keeps the
// reliable sender draining. The outbox survives reconnects.
package responder

import (
	"context"
	"log/slog"
	"time"

	"github.com/fireline/fireline/internal/edge/protocol"
	"github.com/fireline/fireline/internal/edge/transport"
	"github.com/fireline/fireline/internal/responder/config"
	"github.com/fireline/fireline/internal/responder/outbox"
	"github.com/fireline/fireline/internal/responder/view"
)

const reconnectDelay = 2 * time.Second

// Client is one responder's connection to the edge node.
type Client struct {
	cfg    *config.Config
	sender *outbox.Sender
	state  *view.State
}

// New creates a client with default reliability timings.
func New(cfg *config.Config) *Client {
	return &Client{
		cfg:    cfg,
		sender: outbox.NewSender(outbox.NewQueue(outbox.DefaultResendAfter), outbox.DefaultFlushInterval),
		state:  view.NewState(),
	}
}

// Sender returns the reliable sender for enqueueing intents.
func (c *Client) Sender() *outbox.Sender {
	return c.sender
}

// View returns the observable state.
func (c *Client) View() *view.State {
	return c.state
}

// Run connects and reconnects until ctx is done. Each established connection
// handshakes first; queued intents drain once the transport is open.
func (c *Client) Run(ctx context.Context) error {
	c.state.SetIdentity(c.cfg.IncidentID, c.cfg.ResponderID)
	go c.sender.Run(ctx)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		c.state.SetStatus(view.StatusConnecting)
		conn, err := transport.Dial(ctx, c.cfg.EdgeURL)
		if err != nil {
			slog.Warn("edge unreachable", "url", c.cfg.EdgeURL, "error", err)
			c.state.SetStatus(view.StatusDisconnected)
			if !sleepCtx(ctx, reconnectDelay) {
				return ctx.Err()
			}
			continue
		}

		c.state.SetStatus(view.StatusConnected)
		c.handshake(conn)
		c.sender.Bind(conn)

		c.readLoop(ctx, conn)

		c.sender.Unbind()
		_ = conn.Close()
		c.state.SetStatus(view.StatusDisconnected)
		slog.Info("disconnected from edge", "responder", c.cfg.ResponderID)

		if !sleepCtx(ctx, reconnectDelay) {
			return ctx.Err()
		}
	}
}

// handshake sends CLIENT_HELLO out-of-band, bypassing the outbox: it carries
// no msgId and must precede any queued data.
func (c *Client) handshake(conn transport.Conn) {
	frame, err := protocol.Encode(protocol.ClientHello{
		Type:        protocol.TypeClientHello,
		IncidentID:  c.cfg.IncidentID,
		ResponderID: c.cfg.ResponderID,
	})
	if err != nil {
		slog.Error("encode hello failed", "error", err)
		return
	}
	if err := conn.Send(frame); err != nil {
		slog.Warn("hello send failed", "error", err)
	}
}

func (c *Client) readLoop(ctx context.Context, conn transport.Conn) {
	for {
		data, err := conn.Receive(ctx)
		if err != nil {
			return
		}
		c.handleFrame(data)
	}
}

func (c *Client) handleFrame(data []byte) {
	env, err := protocol.Peek(data)
	if err != nil {
		slog.Debug("undecodable frame", "error", err)
		return
	}

	switch env.Type {
	case protocol.TypeAckMsg:
		c.sender.Ack(env.MsgID)
	case protocol.TypeAck:
		var ack protocol.Ack
		if err := protocol.Decode(data, &ack); err == nil {
			slog.Info("joined incident", "incident", ack.IncidentID, "responder", c.cfg.ResponderID)
		}
	case protocol.TypeError:
		var msg protocol.ErrorMsg
		if err := protocol.Decode(data, &msg); err == nil {
			slog.Warn("edge reported error", "error", msg.Error)
		}
	default:
		if err := c.state.Apply(env.Type, data); err != nil {
			slog.Debug("broadcast not applied", "type", env.Type, "error", err)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
