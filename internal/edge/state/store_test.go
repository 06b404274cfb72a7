package state

import (
	"context"
	"io"
	"sort"
	"testing"

	"github.com/fireline/fireline/internal/edge/protocol"
)

// stubConn is a placeholder connection identity for store tests.
type stubConn struct{ id int }

func (c *stubConn) Send([]byte) error { return nil }

func (c *stubConn) Receive(context.Context) ([]byte, error) { return nil, io.EOF }

func (c *stubConn) Close() error { return nil }

func TestAddRemoveConnection(t *testing.T) {
	s := NewStore()
	a := &stubConn{1}

	s.AddConnection(a, "I1", "A")

	meta, ok := s.MetaFor(a)
	if !ok {
		t.Fatal("MetaFor() should find the bound connection")
	}
	if meta.IncidentID != "I1" || meta.ResponderID != "A" {
		t.Errorf("meta = %+v, want I1/A", meta)
	}
	if got := s.IncidentCount(); got != 1 {
		t.Errorf("IncidentCount() = %d, want 1", got)
	}

	removed, ok := s.RemoveConnection(a)
	if !ok || removed.ResponderID != "A" {
		t.Fatalf("RemoveConnection() = %+v, %v", removed, ok)
	}
	if got := s.IncidentCount(); got != 0 {
		t.Errorf("empty room should be deleted, IncidentCount() = %d", got)
	}
	if _, ok := s.RemoveConnection(a); ok {
		t.Error("second RemoveConnection() should report not found")
	}
}

func TestRoomMetaInvariant(t *testing.T) {
	s := NewStore()
	a, b, c := &stubConn{1}, &stubConn{2}, &stubConn{3}
	s.AddConnection(a, "I1", "A")
	s.AddConnection(b, "I1", "B")
	s.AddConnection(c, "I2", "C")

	for _, incident := range []string{"I1", "I2"} {
		for _, conn := range s.Connections(incident) {
			meta, ok := s.MetaFor(conn)
			if !ok || meta.IncidentID != incident {
				t.Errorf("connection in room %q has meta %+v", incident, meta)
			}
		}
	}
}

func TestResponderIDsDerivedFromLiveConnections(t *testing.T) {
	s := NewStore()
	a, b := &stubConn{1}, &stubConn{2}
	s.AddConnection(a, "I1", "A")
	s.AddConnection(b, "I1", "B")

	ids := s.ResponderIDs("I1")
	sort.Strings(ids)
	if len(ids) != 2 || ids[0] != "A" || ids[1] != "B" {
		t.Fatalf("ResponderIDs() = %v, want [A B]", ids)
	}

	s.RemoveConnection(b)
	ids = s.ResponderIDs("I1")
	if len(ids) != 1 || ids[0] != "A" {
		t.Errorf("after leave, ResponderIDs() = %v, want [A]", ids)
	}
}

func TestLocationSurvivesDisconnect(t *testing.T) {
	s := NewStore()
	a := &stubConn{1}
	s.AddConnection(a, "I1", "A")
	s.SetLocation("A", protocol.Location{Lat: 37, Lng: -122, At: 100})
	s.RemoveConnection(a)

	loc, ok := s.LocationFor("A")
	if !ok || loc.Lat != 37 {
		t.Fatalf("location should survive disconnect, got %+v, %v", loc, ok)
	}

	// A reconnecting session inherits the earlier location in its room view.
	a2 := &stubConn{2}
	s.AddConnection(a2, "I1", "A")
	locs := s.LocationsFor("I1")
	if _, ok := locs["A"]; !ok {
		t.Errorf("LocationsFor() after reconnect = %v, want A present", locs)
	}
}

func TestLocationsForRestrictedToRoom(t *testing.T) {
	s := NewStore()
	a, b := &stubConn{1}, &stubConn{2}
	s.AddConnection(a, "I1", "A")
	s.AddConnection(b, "I2", "B")
	s.SetLocation("A", protocol.Location{Lat: 1, Lng: 2, At: 1})
	s.SetLocation("B", protocol.Location{Lat: 3, Lng: 4, At: 1})
	// C has a location but no live connection.
	s.SetLocation("C", protocol.Location{Lat: 5, Lng: 6, At: 1})

	locs := s.LocationsFor("I1")
	if len(locs) != 1 {
		t.Fatalf("LocationsFor(I1) = %v, want only A", locs)
	}
	if _, ok := locs["A"]; !ok {
		t.Errorf("LocationsFor(I1) missing A: %v", locs)
	}
}

func TestSosLifecycle(t *testing.T) {
	s := NewStore()
	note := "trapped"
	s.RaiseSOS("I1", "A", &note, 100)

	sos := s.SOSFor("I1")
	if st, ok := sos["A"]; !ok || st.Note == nil || *st.Note != "trapped" || st.At != 100 {
		t.Fatalf("SOSFor() = %v, want A trapped@100", sos)
	}

	// Overwrite wins.
	note2 := "injured"
	s.RaiseSOS("I1", "A", &note2, 200)
	if st := s.SOSFor("I1")["A"]; st.Note == nil || *st.Note != "injured" || st.At != 200 {
		t.Errorf("overwritten SOS = %+v, want injured@200", st)
	}

	s.ClearSOS("I1", "A")
	if got := s.SOSFor("I1"); len(got) != 0 {
		t.Errorf("SOSFor() after clear = %v, want empty", got)
	}
	if got := s.SOSCount(); got != 0 {
		t.Errorf("SOSCount() = %d, want 0 after empty incident dropped", got)
	}
}

func TestSosIsolatedPerIncident(t *testing.T) {
	s := NewStore()
	s.RaiseSOS("I1", "A", nil, 1)

	if got := s.SOSFor("I2"); len(got) != 0 {
		t.Errorf("SOSFor(I2) = %v, want empty", got)
	}
	s.ClearSOS("I2", "A") // no-op
	if got := s.SOSFor("I1"); len(got) != 1 {
		t.Errorf("SOSFor(I1) = %v, want A's SOS intact", got)
	}
}
