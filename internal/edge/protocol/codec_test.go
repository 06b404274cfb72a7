package protocol

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func TestPeek(t *testing.T) {
	env, err := Peek([]byte(`{"type":"CHAT_SEND","msgId":"m1","text":"hi"}`))
	if err != nil {
		t.Fatalf("Peek() error: %v", err)
	}
	if env.Type != TypeChatSend {
		t.Errorf("Type = %q, want %q", env.Type, TypeChatSend)
	}
	if env.MsgID != "m1" {
		t.Errorf("MsgID = %q, want %q", env.MsgID, "m1")
	}
}

func TestPeekMissingType(t *testing.T) {
	_, err := Peek([]byte(`{"msgId":"m1"}`))
	if !errors.Is(err, ErrMissingType) {
		t.Errorf("Peek() error = %v, want ErrMissingType", err)
	}
}

func TestPeekInvalidJSON(t *testing.T) {
	if _, err := Peek([]byte(`{not json`)); err == nil {
		t.Error("Peek() on invalid JSON should fail")
	}
}

func TestValidCoordinates(t *testing.T) {
	tests := []struct {
		name     string
		lat, lng float64
		want     bool
	}{
		{"origin", 0, 0, true},
		{"san francisco", 37.7749, -122.4194, true},
		{"lat north edge", 90, 0, true},
		{"lat south edge", -90, 0, true},
		{"lng east edge", 0, 180, true},
		{"lng west edge", 0, -180, true},
		{"lat too big", 90.001, 0, false},
		{"lat way off", 200, 0, false},
		{"lng too big", 0, 180.5, false},
		{"lat NaN", math.NaN(), 0, false},
		{"lng infinite", 0, math.Inf(1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidCoordinates(tt.lat, tt.lng); got != tt.want {
				t.Errorf("ValidCoordinates(%v, %v) = %v, want %v", tt.lat, tt.lng, got, tt.want)
			}
		})
	}
}

func TestValidAccuracy(t *testing.T) {
	if !ValidAccuracy(0) || !ValidAccuracy(12.5) {
		t.Error("non-negative finite accuracy should be valid")
	}
	if ValidAccuracy(-1) || ValidAccuracy(math.NaN()) || ValidAccuracy(math.Inf(1)) {
		t.Error("negative or non-finite accuracy should be invalid")
	}
}

func TestLocationOmitsNilAccuracy(t *testing.T) {
	data, err := Encode(Location{Lat: 1, Lng: 2, At: 3})
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if _, ok := m["accuracy"]; ok {
		t.Errorf("accuracy should be omitted when unset, got %s", data)
	}
}

func TestClientFrameOmitsIdentity(t *testing.T) {
	data, err := Encode(LocationUpdate{Type: TypeLocationUpdate, MsgID: "m1", Lat: 1, Lng: 2})
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	for _, key := range []string{"incidentId", "responderId", "at"} {
		if _, ok := m[key]; ok {
			t.Errorf("client frame should omit %q, got %s", key, data)
		}
	}
}
