package outbox

import (
	"testing"
	"time"

	"github.com/fireline/fireline/internal/edge/protocol"
)

func TestPriorityFor(t *testing.T) {
	tests := []struct {
		typ  protocol.Type
		want int
	}{
		{protocol.TypeSosRaise, 0},
		{protocol.TypeSosClear, 0},
		{protocol.TypeLocationUpdate, 2},
		{protocol.TypeChatSend, 3},
		{protocol.Type("PING"), 5},
	}
	for _, tt := range tests {
		if got := PriorityFor(tt.typ); got != tt.want {
			t.Errorf("PriorityFor(%s) = %d, want %d", tt.typ, got, tt.want)
		}
	}
}

// Scenario: priority drain. Items enqueued while offline leave in urgency
// order once flushing resumes, one per tick.
func TestDrainOrderRespectsPriority(t *testing.T) {
	q := NewQueue(DefaultResendAfter)
	q.Enqueue("m-chat", protocol.TypeChatSend, []byte("chat"))
	q.Enqueue("m-loc", protocol.TypeLocationUpdate, []byte("loc"))
	q.Enqueue("m-sos", protocol.TypeSosRaise, []byte("sos"))

	now := time.Now()
	var order []string
	for i := 0; i < 3; i++ {
		item := q.Next(now)
		if item == nil {
			t.Fatalf("Next() returned nil on pick %d", i)
		}
		order = append(order, item.MsgID)
	}
	want := []string{"m-sos", "m-loc", "m-chat"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("drain order = %v, want %v", order, want)
		}
	}
}

func TestTiesBreakByInsertionOrder(t *testing.T) {
	q := NewQueue(DefaultResendAfter)
	q.Enqueue("c1", protocol.TypeChatSend, nil)
	q.Enqueue("c2", protocol.TypeChatSend, nil)

	now := time.Now()
	if item := q.Next(now); item.MsgID != "c1" {
		t.Errorf("first pick = %s, want c1", item.MsgID)
	}
	if item := q.Next(now); item.MsgID != "c2" {
		t.Errorf("second pick = %s, want c2", item.MsgID)
	}
}

func TestInFlightItemNotResentEarly(t *testing.T) {
	q := NewQueue(DefaultResendAfter)
	q.Enqueue("m1", protocol.TypeChatSend, nil)

	now := time.Now()
	if item := q.Next(now); item == nil || item.Attempts != 1 {
		t.Fatalf("first pick = %+v, want attempt 1", item)
	}
	// Next tick, still inside the resend window: nothing to do.
	if item := q.Next(now.Add(DefaultFlushInterval)); item != nil {
		t.Errorf("Next() inside resend window = %+v, want nil", item)
	}
}

func TestResendAfterTimeout(t *testing.T) {
	q := NewQueue(DefaultResendAfter)
	q.Enqueue("m1", protocol.TypeChatSend, nil)

	now := time.Now()
	q.Next(now)
	item := q.Next(now.Add(DefaultResendAfter + time.Millisecond))
	if item == nil || item.MsgID != "m1" {
		t.Fatalf("overdue item should be resent, got %+v", item)
	}
	if item.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", item.Attempts)
	}
}

func TestFreshItemPreferredOverResend(t *testing.T) {
	q := NewQueue(DefaultResendAfter)
	q.Enqueue("m1", protocol.TypeChatSend, nil)

	now := time.Now()
	q.Next(now)
	q.Enqueue("m2", protocol.TypeChatSend, nil)

	// Even with m1 overdue, the fresh item goes first.
	item := q.Next(now.Add(2 * DefaultResendAfter))
	if item == nil || item.MsgID != "m2" {
		t.Errorf("Next() = %+v, want fresh m2", item)
	}
}

func TestAckRetiresItem(t *testing.T) {
	q := NewQueue(DefaultResendAfter)
	q.Enqueue("m1", protocol.TypeChatSend, nil)
	q.Next(time.Now())

	if !q.Ack("m1") {
		t.Fatal("Ack() should find the in-flight item")
	}
	if q.Len() != 0 || q.PendingLen() != 0 {
		t.Errorf("queue after ACK: len=%d pending=%d, want empty", q.Len(), q.PendingLen())
	}
	if q.Ack("m1") {
		t.Error("duplicate ACK should be a no-op")
	}
}

func TestAckUnsentItemRemovesFromOutbox(t *testing.T) {
	q := NewQueue(DefaultResendAfter)
	q.Enqueue("m1", protocol.TypeChatSend, nil)

	if !q.Ack("m1") {
		t.Fatal("Ack() should retire a not-yet-sent item too")
	}
	if q.Len() != 0 {
		t.Errorf("Len() = %d, want 0", q.Len())
	}
}

// Scenario: retry until ACK. A lost acknowledgement means the item is resent
// until one arrives, then queue and pending end empty.
func TestRetryUntilAck(t *testing.T) {
	q := NewQueue(DefaultResendAfter)
	q.Enqueue("m1", protocol.TypeChatSend, nil)

	now := time.Now()
	first := q.Next(now)
	if first == nil {
		t.Fatal("expected initial send")
	}
	// The ACK is lost; the item is resent after the timeout.
	second := q.Next(now.Add(DefaultResendAfter + 50*time.Millisecond))
	if second == nil || second.MsgID != "m1" || second.Attempts != 2 {
		t.Fatalf("resend = %+v", second)
	}
	// The server dedups and re-ACKs; the client retires the item.
	if !q.Ack("m1") {
		t.Fatal("Ack() should retire the resent item")
	}
	if q.Len() != 0 || q.PendingLen() != 0 {
		t.Errorf("queue after ACK: len=%d pending=%d, want both 0", q.Len(), q.PendingLen())
	}
}

// The queue survives a disconnect untouched; once flushing resumes, the old
// in-flight timestamps are already past the resend window.
func TestQueueSurvivesReconnect(t *testing.T) {
	q := NewQueue(DefaultResendAfter)
	q.Enqueue("m1", protocol.TypeChatSend, nil)
	q.Next(time.Now().Add(-time.Minute)) // sent long ago, never ACKed

	if q.Len() != 1 || q.PendingLen() != 1 {
		t.Fatalf("queue should be untouched across reconnects: len=%d pending=%d", q.Len(), q.PendingLen())
	}
	item := q.Next(time.Now())
	if item == nil || item.MsgID != "m1" {
		t.Errorf("stale in-flight item should resend immediately, got %+v", item)
	}
}
