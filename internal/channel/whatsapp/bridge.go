// Package whatsapp talks to the external WhatsApp bridge process over its
// JSON WebSocket protocol. The bridge owns the WhatsApp protocol itself.
package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/soyeahso/funnelbot/internal/connection"
	"github.com/soyeahso/funnelbot/internal/domain"
	"github.com/soyeahso/funnelbot/internal/logging"
	"github.com/soyeahso/funnelbot/internal/version"
)

const (
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 10 * time.Second
)

// Browser identifies the linked device to WhatsApp.
type Browser struct {
	Name    string
	Client  string
	Version string
}

// Dialer opens bridge sessions.
type Dialer struct {
	url     string
	browser Browser
	log     *logging.Logger
}

// NewDialer returns a Dialer for the bridge at url.
func NewDialer(url string, browser Browser, log *logging.Logger) *Dialer {
	return &Dialer{url: url, browser: browser, log: log.Sub("whatsapp")}
}

// Dial connects to the bridge and sends the hello frame. creds may be nil,
// in which case the bridge starts a fresh pairing.
func (d *Dialer) Dial(ctx context.Context, creds []byte) (connection.Session, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
	}
	header := http.Header{}
	header.Set("User-Agent", version.UserAgent())

	conn, _, err := dialer.DialContext(ctx, d.url, header)
	if err != nil {
		return nil, fmt.Errorf("dial whatsapp bridge %s: %w", d.url, err)
	}

	hello := helloFrame{
		Type:    frameHello,
		Browser: [3]string{d.browser.Name, d.browser.Client, d.browser.Version},
		Creds:   json.RawMessage("null"),
	}
	if len(creds) > 0 {
		hello.Creds = creds
	}

	s := newSession(conn, d.log)
	if err := s.write(hello); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sending hello: %w", err)
	}

	d.log.Info().Str("url", d.url).Bool("credentials", len(creds) > 0).Msg("whatsapp bridge connected")
	go s.readLoop()
	return s, nil
}

// session is one WebSocket connection to the bridge.
type session struct {
	conn   *websocket.Conn
	events chan connection.Event
	done   chan struct{}
	log    *logging.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func newSession(conn *websocket.Conn, log *logging.Logger) *session {
	return &session{
		conn:   conn,
		events: make(chan connection.Event, 32),
		done:   make(chan struct{}),
		log:    log,
	}
}

func (s *session) Events() <-chan connection.Event {
	return s.events
}

func (s *session) SendText(ctx context.Context, to, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.write(sendFrame{Type: frameSend, To: to, Text: text})
}

func (s *session) SendPresence(ctx context.Context, to string, p domain.Presence) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.write(presenceFrame{Type: framePresence, To: to, State: p})
}

// Close ends the session. It is safe to call more than once.
func (s *session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		s.writeMu.Unlock()
		err = s.conn.Close()
	})
	return err
}

func (s *session) write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	select {
	case <-s.done:
		return net.ErrClosed
	default:
	}

	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// readLoop turns bridge frames into events until the connection fails.
// It ends with one SessionClosed and closes the events channel.
func (s *session) readLoop() {
	defer close(s.events)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
				// Closed by us; nobody is listening.
				return
			default:
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				s.log.Warn().Int("code", closeErr.Code).Str("text", closeErr.Text).Msg("bridge closed the connection")
			} else {
				s.log.Warn().Err(err).Msg("whatsapp read error")
			}
			s.emit(connection.Event{Kind: connection.SessionClosed, Reason: connection.ReasonConnectionLost})
			return
		}

		ev, ok, err := decodeFrame(data)
		if err != nil {
			s.log.Warn().Err(err).Msg("invalid bridge frame")
			continue
		}
		if !ok {
			continue
		}
		if !s.emit(ev) {
			return
		}
		if ev.Kind == connection.SessionClosed {
			return
		}
	}
}

// emit delivers ev unless the session has been closed.
func (s *session) emit(ev connection.Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}
