package model

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Strategy identifies which transport (if any) is active.
type Strategy string

const (
	StrategyOffline    Strategy = "offline"
	StrategyConnecting Strategy = "connecting"
	StrategyWebSocket  Strategy = "websocket"
	StrategyPolling    Strategy = "polling"
)

// String returns the string representation of the Strategy.
func (s Strategy) String() string {
	return string(s)
}

// Message is the unit of transport-agnostic delivery. It round-trips
// byte-for-byte through either transport as a single JSON object.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	ID        string          `json:"id"`
	Timestamp int64           `json:"timestamp"` // Unix milliseconds
}

// NewMessage builds a Message with a fresh unique ID and the current
// timestamp.
func NewMessage(msgType string, payload json.RawMessage) Message {
	return Message{
		Type:      msgType,
		Payload:   payload,
		ID:        uuid.NewString(),
		Timestamp: time.Now().UnixMilli(),
	}
}

// Validation errors returned by Message.Validate.
var (
	ErrMissingType      = errors.New("message type is required")
	ErrMissingPayload   = errors.New("message payload is required")
	ErrMissingID        = errors.New("message id is required")
	ErrMissingTimestamp = errors.New("message timestamp is required")
)

// Validate checks that all required fields are set.
func (m Message) Validate() error {
	if m.Type == "" {
		return ErrMissingType
	}
	if len(m.Payload) == 0 {
		return ErrMissingPayload
	}
	if m.ID == "" {
		return ErrMissingID
	}
	if m.Timestamp == 0 {
		return ErrMissingTimestamp
	}
	return nil
}

// Status describes the connection state at a point in time. The manager
// produces a new value on every transition.
type Status struct {
	Strategy   Strategy  `json:"strategy"`
	Connected  bool      `json:"connected"`
	ObservedAt time.Time `json:"observed_at"`
}

// Stats is a point-in-time snapshot of connection statistics. LatencyHistory
// is ordered oldest to newest and capped by the quality monitor.
type Stats struct {
	MessagesSent     int64
	MessagesReceived int64
	SendFailures     int64
	QualityScore     float64 // Always in [0, 1]
	LatencyHistory   []time.Duration
}
