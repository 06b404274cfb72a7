// Package state holds the edge node's authoritative in-memory incident state:
// rooms of live connections, last-known locations, and active SOS flags.
//
// Rooms store connection references directly; responder membership is derived
// from the open connection set, so presence has a single source of truth.
// Locations and SOS are keyed by responder identity, not connection identity,
// and therefore survive reconnects.
package state

import (
	"sync"
	"time"

	"github.com/fireline/fireline/internal/edge/protocol"
	"github.com/fireline/fireline/internal/edge/transport"
)

// Meta is the identity bound to a connection by a successful handshake.
type Meta struct {
	IncidentID  string
	ResponderID string
	JoinedAt    time.Time
}

// Store is the incident state store. All access is serialized behind one
// mutex; handlers hold it only for map mutation, never across peer I/O.
type Store struct {
	mu sync.RWMutex

	// rooms: incidentId -> set of live connections.
	rooms map[string]map[transport.Conn]struct{}
	// meta: connection -> bound identity.
	meta map[transport.Conn]Meta
	// locations: responderId -> last validated location (outlives connections).
	locations map[string]protocol.Location
	// sos: incidentId -> responderId -> active SOS.
	sos map[string]map[string]protocol.SosState
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		rooms:     make(map[string]map[transport.Conn]struct{}),
		meta:      make(map[transport.Conn]Meta),
		locations: make(map[string]protocol.Location),
		sos:       make(map[string]map[string]protocol.SosState),
	}
}

// AddConnection binds a connection to an incident room. The room is created
// lazily on first join.
func (s *Store) AddConnection(c transport.Conn, incidentID, responderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[incidentID]
	if !ok {
		room = make(map[transport.Conn]struct{})
		s.rooms[incidentID] = room
	}
	room[c] = struct{}{}
	s.meta[c] = Meta{
		IncidentID:  incidentID,
		ResponderID: responderID,
		JoinedAt:    time.Now(),
	}
}

// RemoveConnection unbinds a connection and returns its metadata. A room left
// with zero connections is deleted.
func (s *Store) RemoveConnection(c transport.Conn) (Meta, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, ok := s.meta[c]
	if !ok {
		return Meta{}, false
	}
	delete(s.meta, c)

	if room, ok := s.rooms[meta.IncidentID]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(s.rooms, meta.IncidentID)
		}
	}
	return meta, true
}

// MetaFor returns the identity bound to a connection, if any.
func (s *Store) MetaFor(c transport.Conn) (Meta, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	meta, ok := s.meta[c]
	return meta, ok
}

// Connections returns a snapshot of the live connections in a room. Joins and
// leaves during a broadcast over the snapshot are tolerated.
func (s *Store) Connections(incidentID string) []transport.Conn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room := s.rooms[incidentID]
	conns := make([]transport.Conn, 0, len(room))
	for c := range room {
		conns = append(conns, c)
	}
	return conns
}

// ResponderIDs returns the responders currently connected to a room, derived
// from the live connection set. Order is not stable.
func (s *Store) ResponderIDs(incidentID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room := s.rooms[incidentID]
	seen := make(map[string]struct{}, len(room))
	ids := make([]string, 0, len(room))
	for c := range room {
		meta := s.meta[c]
		if _, dup := seen[meta.ResponderID]; dup {
			continue
		}
		seen[meta.ResponderID] = struct{}{}
		ids = append(ids, meta.ResponderID)
	}
	return ids
}

// SetLocation stores a responder's last known location. Callers validate
// coordinates first; the store does not re-check.
func (s *Store) SetLocation(responderID string, loc protocol.Location) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locations[responderID] = loc
}

// LocationFor returns the stored location for a responder.
func (s *Store) LocationFor(responderID string) (protocol.Location, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	loc, ok := s.locations[responderID]
	return loc, ok
}

// LocationsFor returns locations restricted to responders currently connected
// to the room and with a stored location.
func (s *Store) LocationsFor(incidentID string) map[string]protocol.Location {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]protocol.Location)
	for c := range s.rooms[incidentID] {
		rid := s.meta[c].ResponderID
		if loc, ok := s.locations[rid]; ok {
			result[rid] = loc
		}
	}
	return result
}

// RaiseSOS records an active SOS for a responder in an incident, overwriting
// any prior one.
func (s *Store) RaiseSOS(incidentID, responderID string, note *string, at int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	incident, ok := s.sos[incidentID]
	if !ok {
		incident = make(map[string]protocol.SosState)
		s.sos[incidentID] = incident
	}
	incident[responderID] = protocol.SosState{Note: note, At: at}
}

// ClearSOS removes a responder's SOS. An incident map left empty is dropped.
func (s *Store) ClearSOS(incidentID, responderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	incident, ok := s.sos[incidentID]
	if !ok {
		return
	}
	delete(incident, responderID)
	if len(incident) == 0 {
		delete(s.sos, incidentID)
	}
}

// SOSFor returns the active SOS map for an incident.
func (s *Store) SOSFor(incidentID string) map[string]protocol.SosState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]protocol.SosState, len(s.sos[incidentID]))
	for rid, st := range s.sos[incidentID] {
		result[rid] = st
	}
	return result
}

// IncidentCount returns the number of active rooms.
func (s *Store) IncidentCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// ConnectionCount returns the number of bound connections.
func (s *Store) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.meta)
}

// SOSCount returns the number of active SOS flags across all incidents.
func (s *Store) SOSCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, incident := range s.sos {
		count += len(incident)
	}
	return count
}
