// Package protocol defines the JSON message envelope exchanged between
// responder devices and the edge coordinator.
package protocol

// Type identifies a message kind on the wire.
type Type string

const (
	// TypeClientHello binds a connection to an (incident, responder) pair.
	TypeClientHello Type = "CLIENT_HELLO"
	// TypeAck confirms a successful handshake.
	TypeAck Type = "ACK"
	// TypeAckMsg acknowledges a single data message by msgId.
	TypeAckMsg Type = "ACK_MSG"
	// TypeError reports a protocol or validation error to the offender only.
	TypeError Type = "ERROR"
	// TypeSnapshot carries the authoritative room view emitted at join.
	TypeSnapshot Type = "INCIDENT_SNAPSHOT"
	// TypeLocationUpdate reports and broadcasts a responder position.
	TypeLocationUpdate Type = "LOCATION_UPDATE"
	// TypeSosRaise raises an SOS for the sending responder.
	TypeSosRaise Type = "SOS_RAISE"
	// TypeSosClear clears the sending responder's SOS.
	TypeSosClear Type = "SOS_CLEAR"
	// TypeChatSend is a stateless room chat message.
	TypeChatSend Type = "CHAT_SEND"
	// TypePresenceLeave announces a departed responder. Carries no msgId.
	TypePresenceLeave Type = "PRESENCE_LEAVE"
)

// Location is a responder's last known position, timestamped with the edge
// node's wall clock in epoch milliseconds.
type Location struct {
	Lat      float64  `json:"lat"`
	Lng      float64  `json:"lng"`
	Accuracy *float64 `json:"accuracy,omitempty"`
	At       int64    `json:"at"`
}

// SosState is an active SOS raised by a responder within an incident.
type SosState struct {
	Note *string `json:"note,omitempty"`
	At   int64   `json:"at"`
}

// ClientHello is the handshake message (client to server).
type ClientHello struct {
	Type        Type   `json:"type"`
	IncidentID  string `json:"incidentId"`
	ResponderID string `json:"responderId"`
}

// Ack confirms the handshake.
type Ack struct {
	Type       Type   `json:"type"`
	Message    string `json:"message"`
	IncidentID string `json:"incidentId"`
	At         int64  `json:"at"`
}

// AckMsg is the per-message acknowledgement. Receipt means "stop retrying";
// it carries no claim about whether the effect was applied.
type AckMsg struct {
	Type  Type   `json:"type"`
	MsgID string `json:"msgId"`
	At    int64  `json:"at"`
}

// ErrorMsg reports a non-fatal protocol or validation error.
type ErrorMsg struct {
	Type  Type   `json:"type"`
	Error string `json:"error"`
	At    int64  `json:"at,omitempty"`
}

// Snapshot is the room view sent to a joiner.
type Snapshot struct {
	Type       Type                `json:"type"`
	IncidentID string              `json:"incidentId"`
	Responders []string            `json:"responders"`
	Locations  map[string]Location `json:"locations"`
	Sos        map[string]SosState `json:"sos"`
	At         int64               `json:"at"`
}

// LocationUpdate is sent by clients (identity fields empty) and broadcast by
// the server with authoritative incidentId, responderId, and at.
type LocationUpdate struct {
	Type        Type     `json:"type"`
	MsgID       string   `json:"msgId"`
	IncidentID  string   `json:"incidentId,omitempty"`
	ResponderID string   `json:"responderId,omitempty"`
	Lat         float64  `json:"lat"`
	Lng         float64  `json:"lng"`
	Accuracy    *float64 `json:"accuracy,omitempty"`
	At          int64    `json:"at,omitempty"`
}

// SosRaise raises or overwrites an SOS.
type SosRaise struct {
	Type        Type    `json:"type"`
	MsgID       string  `json:"msgId"`
	IncidentID  string  `json:"incidentId,omitempty"`
	ResponderID string  `json:"responderId,omitempty"`
	Note        *string `json:"note,omitempty"`
	At          int64   `json:"at,omitempty"`
}

// SosClear removes an active SOS.
type SosClear struct {
	Type        Type   `json:"type"`
	MsgID       string `json:"msgId"`
	IncidentID  string `json:"incidentId,omitempty"`
	ResponderID string `json:"responderId,omitempty"`
	At          int64  `json:"at,omitempty"`
}

// ChatSend is a room chat line.
type ChatSend struct {
	Type       Type   `json:"type"`
	MsgID      string `json:"msgId"`
	IncidentID string `json:"incidentId,omitempty"`
	From       string `json:"from,omitempty"`
	Text       string `json:"text"`
	At         int64  `json:"at,omitempty"`
}

// PresenceLeave announces that a responder's connection closed.
type PresenceLeave struct {
	Type        Type   `json:"type"`
	IncidentID  string `json:"incidentId"`
	ResponderID string `json:"responderId"`
	At          int64  `json:"at"`
}
