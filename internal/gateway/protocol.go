package gateway

import (
	"encoding/json"
	"time"
)

// Frame types pushed to UI clients over /ws.
const FrameTypeEvent = "event"

// Event names.
const (
	EventConnectionStatus = "connection.status"
)

// Frame is an event pushed to a UI client.
type Frame struct {
	Type    string          `json:"type"`
	Event   string          `json:"event"`
	Seq     int64           `json:"seq"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEvent creates an event frame.
func NewEvent(event string, payload any, seq int64) (Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{
		Type:    FrameTypeEvent,
		Event:   event,
		Seq:     seq,
		Payload: raw,
	}, nil
}

// StatusResponse is the connection status as served by /status and pushed
// over /ws.
type StatusResponse struct {
	Connected          bool      `json:"connected"`
	HasQR              bool      `json:"hasQR"`
	QR                 string    `json:"qr,omitempty"`
	ConnectionAttempts int       `json:"connectionAttempts"`
	State              string    `json:"state"`
	LastReason         string    `json:"lastReason,omitempty"`
	Timestamp          time.Time `json:"timestamp"`
	Message            string    `json:"message"`
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
	Clients int    `json:"clients"`
}

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
