package domain

import (
	"strings"
	"time"
)

// Envelope is an inbound chat message as delivered by the transport.
type Envelope struct {
	ID        string          `json:"id"`
	ChatID    string          `json:"chatId"`
	From      string          `json:"from,omitempty"`
	PushName  string          `json:"pushName,omitempty"`
	FromMe    bool            `json:"fromMe"`
	Timestamp time.Time       `json:"timestamp"`
	Message   *MessageContent `json:"message,omitempty"`
}

// MessageContent holds the message body variants the bot understands.
type MessageContent struct {
	Conversation string               `json:"conversation,omitempty"`
	ExtendedText *ExtendedTextMessage `json:"extendedTextMessage,omitempty"`
}

// ExtendedTextMessage is a text message carrying a quote or link preview.
type ExtendedTextMessage struct {
	Text string `json:"text"`
}

// Text returns the plain text of the message, preferring the conversation
// body over extended text. It returns "" when there is nothing to read.
func (e Envelope) Text() string {
	if e.Message == nil {
		return ""
	}
	if e.Message.Conversation != "" {
		return e.Message.Conversation
	}
	if e.Message.ExtendedText != nil {
		return e.Message.ExtendedText.Text
	}
	return ""
}

// IsGroup reports whether the message came from a group chat.
func (e Envelope) IsGroup() bool {
	return strings.HasSuffix(e.ChatID, "@g.us")
}

// Presence is a chat presence indicator.
type Presence string

const (
	PresenceComposing Presence = "composing"
	PresencePaused    Presence = "paused"
	PresenceAvailable Presence = "available"
)
