package outbox

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fireline/fireline/internal/edge/protocol"
	"github.com/fireline/fireline/internal/edge/transport"
)

// Sender drives a Queue against the live transport. Flushing is gated on the
// connection being open, not on the handshake ACK: pre-handshake sends earn a
// benign server ERROR and are retried after the next reconnect.
type Sender struct {
	q        *Queue
	interval time.Duration

	mu   sync.Mutex
	conn transport.Conn
}

// NewSender creates a sender over q. interval <= 0 selects
// DefaultFlushInterval.
func NewSender(q *Queue, interval time.Duration) *Sender {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	return &Sender{q: q, interval: interval}
}

// Queue exposes the underlying queue.
func (s *Sender) Queue() *Queue {
	return s.q
}

// Bind attaches an open connection; the queue starts draining on the next
// tick. Items already in flight from a previous connection are stale enough
// to hit the resend branch immediately.
func (s *Sender) Bind(conn transport.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn = conn
}

// Unbind suspends flushing. Queue and pending state are left untouched.
func (s *Sender) Unbind() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn = nil
}

// Run flushes on a fixed tick until ctx is done.
func (s *Sender) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.flush(now)
		}
	}
}

// Ack retires an acknowledged item.
func (s *Sender) Ack(msgID string) {
	if s.q.Ack(msgID) {
		slog.Debug("outbox item acknowledged", "msgId", msgID)
	}
}

func (s *Sender) flush(now time.Time) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return
	}

	item := s.q.Next(now)
	if item == nil {
		return
	}
	if err := conn.Send(item.Frame); err != nil {
		// The item stays pending; the resend branch retries it once the
		// timeout elapses.
		slog.Debug("outbox send failed", "msgId", item.MsgID, "error", err)
		return
	}
	slog.Debug("outbox sent", "msgId", item.MsgID, "type", item.Type, "attempts", item.Attempts)
}

// EnqueueLocation queues a location report and returns its msgId.
func (s *Sender) EnqueueLocation(lat, lng float64, accuracy *float64) (string, error) {
	msgID := uuid.NewString()
	frame, err := protocol.Encode(protocol.LocationUpdate{
		Type:     protocol.TypeLocationUpdate,
		MsgID:    msgID,
		Lat:      lat,
		Lng:      lng,
		Accuracy: accuracy,
	})
	if err != nil {
		return "", err
	}
	s.q.Enqueue(msgID, protocol.TypeLocationUpdate, frame)
	return msgID, nil
}

// EnqueueSosRaise queues an SOS. An empty note is omitted from the frame.
func (s *Sender) EnqueueSosRaise(note string) (string, error) {
	msgID := uuid.NewString()
	msg := protocol.SosRaise{Type: protocol.TypeSosRaise, MsgID: msgID}
	if note != "" {
		msg.Note = &note
	}
	frame, err := protocol.Encode(msg)
	if err != nil {
		return "", err
	}
	s.q.Enqueue(msgID, protocol.TypeSosRaise, frame)
	return msgID, nil
}

// EnqueueSosClear queues an SOS clear.
func (s *Sender) EnqueueSosClear() (string, error) {
	msgID := uuid.NewString()
	frame, err := protocol.Encode(protocol.SosClear{
		Type:  protocol.TypeSosClear,
		MsgID: msgID,
	})
	if err != nil {
		return "", err
	}
	s.q.Enqueue(msgID, protocol.TypeSosClear, frame)
	return msgID, nil
}

// EnqueueChat queues a chat line.
func (s *Sender) EnqueueChat(text string) (string, error) {
	msgID := uuid.NewString()
	frame, err := protocol.Encode(protocol.ChatSend{
		Type:  protocol.TypeChatSend,
		MsgID: msgID,
		Text:  text,
	})
	if err != nil {
		return "", err
	}
	s.q.Enqueue(msgID, protocol.TypeChatSend, frame)
	return msgID, nil
}
