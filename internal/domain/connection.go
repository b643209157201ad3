package domain

import "time"

// ConnectionState is the lifecycle state of the transport session.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StatePairing
	StateConnected
	StateReconnecting
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StatePairing:
		return "pairing"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON payloads.
func (s ConnectionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ConnectionStatus is a point-in-time copy of the connection state.
type ConnectionStatus struct {
	State       ConnectionState `json:"state"`
	PairingCode string          `json:"pairingCode,omitempty"`
	Attempts    int             `json:"attempts"`
	LastReason  string          `json:"lastReason,omitempty"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Connected reports whether the session is open.
func (s ConnectionStatus) Connected() bool {
	return s.State == StateConnected
}

// HasPairingCode reports whether a pairing code is waiting to be scanned.
func (s ConnectionStatus) HasPairingCode() bool {
	return s.PairingCode != ""
}
