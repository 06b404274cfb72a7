// Package outbox implements the client-side reliability layer: a
// priority-ordered queue of intents that are retried until the edge node
// acknowledges their msgId. The queue survives disconnects, which is the
// offline-first guarantee.
package outbox

import (
	"sync"
	"time"

	"github.com/fireline/fireline/internal/edge/protocol"
)

const (
	// DefaultFlushInterval is the cadence of the flush tick while the
	// transport is open.
	DefaultFlushInterval = 300 * time.Millisecond
	// DefaultResendAfter is how long an in-flight item waits for its ACK
	// before being resent.
	DefaultResendAfter = 1500 * time.Millisecond
)

// PriorityFor maps message types to urgency. Lower is more urgent; ties
// break by enqueue order.
func PriorityFor(t protocol.Type) int {
	switch t {
	case protocol.TypeSosRaise, protocol.TypeSosClear:
		return 0
	case protocol.TypeLocationUpdate:
		return 2
	case protocol.TypeChatSend:
		return 3
	default:
		return 5
	}
}

// Item is one queued intent. It is created on a user action and removed only
// by the matching server ACK.
type Item struct {
	MsgID      string
	Type       protocol.Type
	Frame      []byte
	Priority   int
	Attempts   int
	LastSentAt time.Time

	seq uint64
}

// Queue is the flush engine state: the ordered outbox plus the in-flight
// pending table. It is safe for concurrent use, though the reference client
// drives it from a single loop.
type Queue struct {
	mu          sync.Mutex
	items       []*Item
	pending     map[string]*Item
	resendAfter time.Duration
	nextSeq     uint64
}

// NewQueue creates a queue. resendAfter <= 0 selects DefaultResendAfter.
func NewQueue(resendAfter time.Duration) *Queue {
	if resendAfter <= 0 {
		resendAfter = DefaultResendAfter
	}
	return &Queue{
		pending:     make(map[string]*Item),
		resendAfter: resendAfter,
	}
}

// Enqueue adds an intent, keeping the outbox sorted by (priority, arrival).
func (q *Queue) Enqueue(msgID string, t protocol.Type, frame []byte) *Item {
	q.mu.Lock()
	defer q.mu.Unlock()

	item := &Item{
		MsgID:    msgID,
		Type:     t,
		Frame:    frame,
		Priority: PriorityFor(t),
		seq:      q.nextSeq,
	}
	q.nextSeq++

	idx := len(q.items)
	for i, existing := range q.items {
		if existing.Priority > item.Priority {
			idx = i
			break
		}
	}
	q.items = append(q.items, nil)
	copy(q.items[idx+1:], q.items[idx:])
	q.items[idx] = item
	return item
}

// Ack retires the item for msgID from both the pending table and the outbox.
// It reports whether the item was known.
func (q *Queue) Ack(msgID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.pending[msgID]; !ok {
		// Late duplicate ACK after the item was already retired.
		if !q.contains(msgID) {
			return false
		}
	}
	delete(q.pending, msgID)
	for i, item := range q.items {
		if item.MsgID == msgID {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

// Next picks at most one item to put on the wire this tick: the most urgent
// item not yet in flight, or failing that the first in-flight item whose ACK
// is overdue. The chosen item's attempt bookkeeping is updated before return.
func (q *Queue) Next(now time.Time) *Item {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, item := range q.items {
		if _, inFlight := q.pending[item.MsgID]; !inFlight {
			q.markSent(item, now)
			return item
		}
	}
	for _, item := range q.items {
		if _, inFlight := q.pending[item.MsgID]; inFlight && now.Sub(item.LastSentAt) > q.resendAfter {
			q.markSent(item, now)
			return item
		}
	}
	return nil
}

// Len returns the number of queued items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// PendingLen returns the number of in-flight items.
func (q *Queue) PendingLen() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *Queue) markSent(item *Item, now time.Time) {
	item.LastSentAt = now
	item.Attempts++
	q.pending[item.MsgID] = item
}

func (q *Queue) contains(msgID string) bool {
	for _, item := range q.items {
		if item.MsgID == msgID {
			return true
		}
	}
	return false
}
