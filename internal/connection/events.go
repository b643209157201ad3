// Package connection owns the lifecycle of the messaging transport session:
// pairing, reconnects and restarts.
package connection

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/soyeahso/funnelbot/internal/domain"
)

// ErrNotConnected is returned by sends while no session is live.
var ErrNotConnected = errors.New("not connected")

// EventKind enumerates what a transport session reports.
type EventKind int

const (
	PairingCodeIssued EventKind = iota + 1
	SessionOpened
	SessionClosed
	MessageReceived
	CredentialsUpdated
)

func (k EventKind) String() string {
	switch k {
	case PairingCodeIssued:
		return "pairing_code_issued"
	case SessionOpened:
		return "session_opened"
	case SessionClosed:
		return "session_closed"
	case MessageReceived:
		return "message_received"
	case CredentialsUpdated:
		return "credentials_updated"
	default:
		return "unknown"
	}
}

// Close reasons with special meaning. Other reasons are passed through from
// the transport as-is.
const (
	ReasonLoggedOut      = "loggedOut"
	ReasonConnectionLost = "connectionLost"
	ReasonConnectFailed  = "connectFailed"
)

// Event is one notification from a Session.
type Event struct {
	Kind        EventKind
	PairingCode string           // PairingCodeIssued
	Reason      string           // SessionClosed
	Message     *domain.Envelope // MessageReceived
	Credentials json.RawMessage  // CredentialsUpdated
}

// Session is a live transport connection. Events is closed when the session
// ends, after a final SessionClosed.
type Session interface {
	Events() <-chan Event
	SendText(ctx context.Context, to, text string) error
	SendPresence(ctx context.Context, to string, presence domain.Presence) error
	Close() error
}

// Dialer opens a new Session. creds is nil when no credentials are stored.
type Dialer interface {
	Dial(ctx context.Context, creds []byte) (Session, error)
}

// CredentialStore keeps transport credentials between sessions.
type CredentialStore interface {
	Load() ([]byte, error)
	Save(creds []byte) error
	Clear() error
}

// MessageHandler receives inbound messages. It is called on its own
// goroutine for every message.
type MessageHandler func(ctx context.Context, env domain.Envelope)
