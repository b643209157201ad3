package whatsapp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/soyeahso/funnelbot/internal/connection"
	"github.com/soyeahso/funnelbot/internal/domain"
)

// Frame types exchanged with the bridge.
const (
	frameHello      = "hello"
	frameSend       = "send"
	framePresence   = "presence"
	frameQR         = "qr"
	frameConnection = "connection"
	frameCreds      = "creds"
	frameMessage    = "message"
)

// inFrame is any frame the bridge sends. Fields are populated according to
// Type.
type inFrame struct {
	Type    string          `json:"type"`
	QR      string          `json:"qr,omitempty"`
	State   string          `json:"state,omitempty"`
	Reason  string          `json:"reason,omitempty"`
	Creds   json.RawMessage `json:"creds,omitempty"`
	Message *wireMessage    `json:"message,omitempty"`
}

type wireMessage struct {
	ID        string                 `json:"id"`
	ChatID    string                 `json:"chatId"`
	From      string                 `json:"from"`
	PushName  string                 `json:"pushName"`
	FromMe    bool                   `json:"fromMe"`
	Timestamp int64                  `json:"timestamp"` // unix seconds
	Message   *domain.MessageContent `json:"message"`
}

type helloFrame struct {
	Type    string          `json:"type"`
	Browser [3]string       `json:"browser"`
	Creds   json.RawMessage `json:"creds"`
}

type sendFrame struct {
	Type string `json:"type"`
	To   string `json:"to"`
	Text string `json:"text"`
}

type presenceFrame struct {
	Type  string          `json:"type"`
	To    string          `json:"to"`
	State domain.Presence `json:"state"`
}

// decodeFrame maps one bridge frame to a connection event. ok is false for
// frames that carry nothing the manager cares about.
func decodeFrame(data []byte) (ev connection.Event, ok bool, err error) {
	var f inFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return connection.Event{}, false, fmt.Errorf("decoding frame: %w", err)
	}

	switch f.Type {
	case frameQR:
		if f.QR == "" {
			return connection.Event{}, false, nil
		}
		return connection.Event{Kind: connection.PairingCodeIssued, PairingCode: f.QR}, true, nil

	case frameConnection:
		switch f.State {
		case "open":
			return connection.Event{Kind: connection.SessionOpened}, true, nil
		case "close":
			reason := f.Reason
			if reason == "" {
				reason = connection.ReasonConnectionLost
			}
			return connection.Event{Kind: connection.SessionClosed, Reason: reason}, true, nil
		default:
			// "connecting" and friends are progress notes only.
			return connection.Event{}, false, nil
		}

	case frameCreds:
		if len(f.Creds) == 0 || string(f.Creds) == "null" {
			return connection.Event{}, false, nil
		}
		return connection.Event{Kind: connection.CredentialsUpdated, Credentials: f.Creds}, true, nil

	case frameMessage:
		if f.Message == nil {
			return connection.Event{}, false, nil
		}
		env := f.Message.envelope()
		return connection.Event{Kind: connection.MessageReceived, Message: &env}, true, nil

	default:
		return connection.Event{}, false, nil
	}
}

func (m *wireMessage) envelope() domain.Envelope {
	env := domain.Envelope{
		ID:       m.ID,
		ChatID:   m.ChatID,
		From:     m.From,
		PushName: m.PushName,
		FromMe:   m.FromMe,
		Message:  m.Message,
	}
	if env.From == "" {
		env.From = m.ChatID
	}
	if m.Timestamp > 0 {
		env.Timestamp = time.Unix(m.Timestamp, 0)
	}
	return env
}
