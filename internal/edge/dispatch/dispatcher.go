// Package dispatch implements the edge coordinator protocol: handshake,
// snapshot synthesis, per-message-type handlers, room broadcast, and
// disconnect cleanup.
package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fireline/fireline/internal/edge/dedup"
	"github.com/fireline/fireline/internal/edge/protocol"
	"github.com/fireline/fireline/internal/edge/state"
	"github.com/fireline/fireline/internal/edge/transport"
)

// Dispatcher processes frames for every connection against the shared store
// and dedup table. Message-level errors go back to the offender only and
// never terminate a connection.
type Dispatcher struct {
	store *state.Store
	dedup *dedup.Table
}

// New creates a dispatcher over the given store and dedup table.
func New(store *state.Store, table *dedup.Table) *Dispatcher {
	return &Dispatcher{store: store, dedup: table}
}

// Serve runs the read loop for one connection until the transport closes or
// ctx is done, then removes the connection and announces its departure.
func (d *Dispatcher) Serve(ctx context.Context, conn transport.Conn) {
	sess := &session{
		id:    uuid.NewString()[:8],
		conn:  conn,
		state: stateAwaitingHello,
	}
	slog.Debug("connection open", "conn", sess.id)
	defer d.teardown(sess)

	for {
		data, err := conn.Receive(ctx)
		if err != nil {
			slog.Debug("connection closed", "conn", sess.id, "state", sess.state, "error", err)
			return
		}
		d.handleFrame(sess, data)
	}
}

func (d *Dispatcher) handleFrame(sess *session, data []byte) {
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		d.sendError(sess, "Invalid JSON")
		return
	}
	typ, _ := stringField(msg, "type")
	if typ == "" {
		d.sendError(sess, "Missing type")
		return
	}

	switch sess.state {
	case stateAwaitingHello:
		if protocol.Type(typ) != protocol.TypeClientHello {
			d.sendError(sess, "Must send CLIENT_HELLO before data messages")
			return
		}
		d.handleHello(sess, msg)
	case stateJoined:
		if protocol.Type(typ) == protocol.TypeClientHello {
			// Hot-rebind is unsupported; the binding from the first
			// handshake stands.
			d.sendError(sess, "Already joined an incident")
			return
		}
		d.handleData(sess, protocol.Type(typ), msg)
	}
}

func (d *Dispatcher) handleHello(sess *session, msg map[string]any) {
	incidentID, _ := stringField(msg, "incidentId")
	responderID, _ := stringField(msg, "responderId")
	if incidentID == "" || responderID == "" {
		d.sendError(sess, "CLIENT_HELLO requires incidentId and responderId")
		return
	}

	d.store.AddConnection(sess.conn, incidentID, responderID)
	sess.state = stateJoined
	sess.incidentID = incidentID
	sess.responderID = responderID

	d.send(sess, protocol.Ack{
		Type:       protocol.TypeAck,
		Message:    "Joined incident",
		IncidentID: incidentID,
		At:         nowMillis(),
	})
	d.send(sess, protocol.Snapshot{
		Type:       protocol.TypeSnapshot,
		IncidentID: incidentID,
		Responders: d.store.ResponderIDs(incidentID),
		Locations:  d.store.LocationsFor(incidentID),
		Sos:        d.store.SOSFor(incidentID),
		At:         nowMillis(),
	})
	slog.Info("responder joined", "conn", sess.id, "incident", incidentID, "responder", responderID)
}

// handleData acknowledges and, if first-seen, executes a data message.
// Marking precedes validation so the ACK stays idempotent: a rejected message
// still consumes its msgId and retries are suppressed silently.
func (d *Dispatcher) handleData(sess *session, typ protocol.Type, msg map[string]any) {
	msgID, _ := stringField(msg, "msgId")
	if msgID == "" {
		d.sendError(sess, "Missing msgId")
		return
	}

	fresh := d.dedup.MarkIfNew(sess.incidentID, msgID)
	now := nowMillis()
	d.send(sess, protocol.AckMsg{Type: protocol.TypeAckMsg, MsgID: msgID, At: now})
	if !fresh {
		slog.Debug("duplicate suppressed", "conn", sess.id, "incident", sess.incidentID, "msgId", msgID)
		return
	}

	switch typ {
	case protocol.TypeLocationUpdate:
		d.handleLocation(sess, msgID, msg, now)
	case protocol.TypeSosRaise:
		d.handleSosRaise(sess, msgID, msg, now)
	case protocol.TypeSosClear:
		d.handleSosClear(sess, msgID, now)
	case protocol.TypeChatSend:
		d.handleChat(sess, msgID, msg, now)
	default:
		d.handlePassthrough(sess, msg, now)
	}
}

func (d *Dispatcher) handleLocation(sess *session, msgID string, msg map[string]any, now int64) {
	lat, latOK := floatField(msg, "lat")
	lng, lngOK := floatField(msg, "lng")
	if !latOK || !lngOK || !protocol.ValidCoordinates(lat, lng) {
		d.sendError(sess, "Invalid coordinates")
		return
	}
	var accuracy *float64
	if acc, ok := floatField(msg, "accuracy"); ok && protocol.ValidAccuracy(acc) {
		accuracy = &acc
	}

	d.store.SetLocation(sess.responderID, protocol.Location{
		Lat:      lat,
		Lng:      lng,
		Accuracy: accuracy,
		At:       now,
	})
	d.broadcast(sess.incidentID, protocol.LocationUpdate{
		Type:        protocol.TypeLocationUpdate,
		MsgID:       msgID,
		IncidentID:  sess.incidentID,
		ResponderID: sess.responderID,
		Lat:         lat,
		Lng:         lng,
		Accuracy:    accuracy,
		At:          now,
	})
}

func (d *Dispatcher) handleSosRaise(sess *session, msgID string, msg map[string]any, now int64) {
	var note *string
	if v, ok := msg["note"].(string); ok {
		note = &v
	}

	d.store.RaiseSOS(sess.incidentID, sess.responderID, note, now)
	slog.Warn("SOS raised", "incident", sess.incidentID, "responder", sess.responderID)
	d.broadcast(sess.incidentID, protocol.SosRaise{
		Type:        protocol.TypeSosRaise,
		MsgID:       msgID,
		IncidentID:  sess.incidentID,
		ResponderID: sess.responderID,
		Note:        note,
		At:          now,
	})
}

func (d *Dispatcher) handleSosClear(sess *session, msgID string, now int64) {
	d.store.ClearSOS(sess.incidentID, sess.responderID)
	slog.Info("SOS cleared", "incident", sess.incidentID, "responder", sess.responderID)
	d.broadcast(sess.incidentID, protocol.SosClear{
		Type:        protocol.TypeSosClear,
		MsgID:       msgID,
		IncidentID:  sess.incidentID,
		ResponderID: sess.responderID,
		At:          now,
	})
}

func (d *Dispatcher) handleChat(sess *session, msgID string, msg map[string]any, now int64) {
	text, ok := msg["text"].(string)
	if !ok || text == "" {
		d.sendError(sess, "CHAT_SEND requires non-empty text")
		return
	}
	d.broadcast(sess.incidentID, protocol.ChatSend{
		Type:       protocol.TypeChatSend,
		MsgID:      msgID,
		IncidentID: sess.incidentID,
		From:       sess.responderID,
		Text:       text,
		At:         now,
	})
}

// handlePassthrough relays unknown message types to the room. The server
// overwrites incidentId, from, and at to enforce authority over identity.
func (d *Dispatcher) handlePassthrough(sess *session, msg map[string]any, now int64) {
	msg["incidentId"] = sess.incidentID
	msg["from"] = sess.responderID
	msg["at"] = now
	d.broadcast(sess.incidentID, msg)
}

func (d *Dispatcher) teardown(sess *session) {
	if sess.state == stateJoined {
		if meta, ok := d.store.RemoveConnection(sess.conn); ok {
			d.broadcast(meta.IncidentID, protocol.PresenceLeave{
				Type:        protocol.TypePresenceLeave,
				IncidentID:  meta.IncidentID,
				ResponderID: meta.ResponderID,
				At:          nowMillis(),
			})
			slog.Info("responder left", "conn", sess.id, "incident", meta.IncidentID, "responder", meta.ResponderID)
		}
	}
	sess.state = stateClosed
	_ = sess.conn.Close()
}

// broadcast fans a payload out to every open connection in the room,
// including the sender. A peer whose buffer is full loses the frame; it
// recovers state via snapshot on its next join.
func (d *Dispatcher) broadcast(incidentID string, payload any) {
	data, err := protocol.Encode(payload)
	if err != nil {
		slog.Error("encode broadcast failed", "incident", incidentID, "error", err)
		return
	}
	for _, c := range d.store.Connections(incidentID) {
		if err := c.Send(data); err != nil {
			slog.Debug("broadcast skipped peer", "incident", incidentID, "error", err)
		}
	}
}

func (d *Dispatcher) send(sess *session, payload any) {
	data, err := protocol.Encode(payload)
	if err != nil {
		slog.Error("encode reply failed", "conn", sess.id, "error", err)
		return
	}
	if err := sess.conn.Send(data); err != nil {
		slog.Debug("reply dropped", "conn", sess.id, "error", err)
	}
}

func (d *Dispatcher) sendError(sess *session, text string) {
	d.send(sess, protocol.ErrorMsg{Type: protocol.TypeError, Error: text, At: nowMillis()})
}

func stringField(msg map[string]any, key string) (string, bool) {
	v, ok := msg[key].(string)
	return v, ok
}

func floatField(msg map[string]any, key string) (float64, bool) {
	v, ok := msg[key].(float64)
	return v, ok
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
