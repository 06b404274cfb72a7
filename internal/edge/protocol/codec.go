package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrMissingType is returned when a decoded frame carries no type field.
var ErrMissingType = errors.New("message has no type")

// Envelope is the portion of a frame every message must carry.
type Envelope struct {
	Type  Type   `json:"type"`
	MsgID string `json:"msgId,omitempty"`
}

// Peek decodes just the envelope fields of a frame.
func Peek(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, ErrMissingType
	}
	return env, nil
}

// Encode marshals a message for the wire.
func Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return data, nil
}

// Decode unmarshals a frame into a typed message.
func Decode(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	return nil
}

// ValidCoordinates reports whether lat/lng are finite and within WGS84 range.
func ValidCoordinates(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lng) || math.IsInf(lng, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// ValidAccuracy reports whether an accuracy value may be stored.
func ValidAccuracy(acc float64) bool {
	return !math.IsNaN(acc) && !math.IsInf(acc, 0) && acc >= 0
}
