// Package view maintains the client's observable incident state: connection
// status plus the roster, locations, and SOS flags learned from snapshots and
// broadcasts. Collections are preserved across disconnects so a UI can show
// stale-but-useful data.
package view

import (
	"fmt"
	"sync"

	"github.com/fireline/fireline/internal/edge/protocol"
)

// Status is the transport connection status.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
)

// String returns the string representation of the status
func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Snapshot is a copy of the observable state.
type Snapshot struct {
	Status      Status
	IncidentID  string
	ResponderID string
	Responders  []string
	Locations   map[string]protocol.Location
	Sos         map[string]protocol.SosState
}

// State is the merge target for server snapshots and broadcasts. Applying a
// broadcast is last-writer-wins, so the client's own echo is idempotent with
// respect to its prior local action.
type State struct {
	mu          sync.RWMutex
	status      Status
	incidentID  string
	responderID string
	responders  []string
	locations   map[string]protocol.Location
	sos         map[string]protocol.SosState

	// OnChat, when set, receives room chat lines. Chat is stateless so it is
	// surfaced rather than stored.
	OnChat func(from, text string, at int64)
}

// NewState creates an empty disconnected state.
func NewState() *State {
	return &State{
		locations: make(map[string]protocol.Location),
		sos:       make(map[string]protocol.SosState),
	}
}

// SetIdentity records which incident and responder this client is.
func (s *State) SetIdentity(incidentID, responderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incidentID = incidentID
	s.responderID = responderID
}

// SetStatus updates the connection status. Disconnecting leaves the learned
// collections in place.
func (s *State) SetStatus(st Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = st
}

// Status returns the current connection status.
func (s *State) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// ApplySnapshot replaces the roster, locations, and SOS wholesale with the
// server's authoritative view.
func (s *State) ApplySnapshot(snap protocol.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.responders = append([]string(nil), snap.Responders...)
	s.locations = make(map[string]protocol.Location, len(snap.Locations))
	for rid, loc := range snap.Locations {
		s.locations[rid] = loc
	}
	s.sos = make(map[string]protocol.SosState, len(snap.Sos))
	for rid, st := range snap.Sos {
		s.sos[rid] = st
	}
}

// Apply merges a broadcast frame incrementally. Unknown types are ignored.
func (s *State) Apply(typ protocol.Type, data []byte) error {
	switch typ {
	case protocol.TypeSnapshot:
		var snap protocol.Snapshot
		if err := protocol.Decode(data, &snap); err != nil {
			return err
		}
		s.ApplySnapshot(snap)
	case protocol.TypeLocationUpdate:
		var msg protocol.LocationUpdate
		if err := protocol.Decode(data, &msg); err != nil {
			return err
		}
		s.mu.Lock()
		s.ensureResponderLocked(msg.ResponderID)
		s.locations[msg.ResponderID] = protocol.Location{
			Lat:      msg.Lat,
			Lng:      msg.Lng,
			Accuracy: msg.Accuracy,
			At:       msg.At,
		}
		s.mu.Unlock()
	case protocol.TypeSosRaise:
		var msg protocol.SosRaise
		if err := protocol.Decode(data, &msg); err != nil {
			return err
		}
		s.mu.Lock()
		s.ensureResponderLocked(msg.ResponderID)
		s.sos[msg.ResponderID] = protocol.SosState{Note: msg.Note, At: msg.At}
		s.mu.Unlock()
	case protocol.TypeSosClear:
		var msg protocol.SosClear
		if err := protocol.Decode(data, &msg); err != nil {
			return err
		}
		s.mu.Lock()
		delete(s.sos, msg.ResponderID)
		s.mu.Unlock()
	case protocol.TypeChatSend:
		var msg protocol.ChatSend
		if err := protocol.Decode(data, &msg); err != nil {
			return err
		}
		s.mu.Lock()
		s.ensureResponderLocked(msg.From)
		onChat := s.OnChat
		s.mu.Unlock()
		if onChat != nil {
			onChat(msg.From, msg.Text, msg.At)
		}
	case protocol.TypePresenceLeave:
		var msg protocol.PresenceLeave
		if err := protocol.Decode(data, &msg); err != nil {
			return err
		}
		s.mu.Lock()
		for i, rid := range s.responders {
			if rid == msg.ResponderID {
				s.responders = append(s.responders[:i], s.responders[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
	}
	return nil
}

// Snapshot returns a copy of the observable state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Status:      s.status,
		IncidentID:  s.incidentID,
		ResponderID: s.responderID,
		Responders:  append([]string(nil), s.responders...),
		Locations:   make(map[string]protocol.Location, len(s.locations)),
		Sos:         make(map[string]protocol.SosState, len(s.sos)),
	}
	for rid, loc := range s.locations {
		snap.Locations[rid] = loc
	}
	for rid, st := range s.sos {
		snap.Sos[rid] = st
	}
	return snap
}

// ensureResponderLocked adds a responder seen in traffic to the roster. The
// server announces joins only through snapshots, so peers that joined after
// this client's handshake become visible by their first broadcast.
func (s *State) ensureResponderLocked(responderID string) {
	if responderID == "" {
		return
	}
	for _, rid := range s.responders {
		if rid == responderID {
			return
		}
	}
	s.responders = append(s.responders, responderID)
}
