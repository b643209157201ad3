package connection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/soyeahso/funnelbot/internal/domain"
	"github.com/soyeahso/funnelbot/internal/logging"
)

// Defaults for a Manager built without overriding options.
const (
	DefaultMaxAttempts    = 3
	DefaultReconnectDelay = 5 * time.Second
	DefaultRestartDelay   = 2 * time.Second
)

// AfterFunc schedules f after d and returns a function that cancels it.
// time.AfterFunc satisfies it through a small adapter.
type AfterFunc func(d time.Duration, f func()) (stop func() bool)

func realAfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

type commandKind int

const (
	cmdRestart commandKind = iota
	cmdStart
	cmdDialed
)

type command struct {
	kind    commandKind
	epoch   uint64
	session Session
	err     error
}

// Option configures a Manager.
type Option func(*Manager)

// WithMaxAttempts sets how many reconnects are tried before giving up.
func WithMaxAttempts(n int) Option {
	return func(m *Manager) { m.maxAttempts = n }
}

// WithReconnectDelay sets the flat delay between reconnect attempts.
func WithReconnectDelay(d time.Duration) Option {
	return func(m *Manager) { m.reconnectDelay = d }
}

// WithRestartDelay sets the delay between a restart and the new dial.
func WithRestartDelay(d time.Duration) Option {
	return func(m *Manager) { m.restartDelay = d }
}

// WithAfterFunc replaces the timer scheduler.
func WithAfterFunc(f AfterFunc) Option {
	return func(m *Manager) { m.afterFunc = f }
}

// WithCredentials sets where transport credentials are kept.
func WithCredentials(s CredentialStore) Option {
	return func(m *Manager) { m.creds = s }
}

// Manager runs the connection state machine. All transitions happen on the
// goroutine executing Run; other goroutines read snapshots via Status and
// send commands via Restart.
type Manager struct {
	dialer         Dialer
	creds          CredentialStore
	handler        MessageHandler
	maxAttempts    int
	reconnectDelay time.Duration
	restartDelay   time.Duration
	afterFunc      AfterFunc
	log            *logging.Logger

	cmds chan command
	done chan struct{}

	// Owned by the Run goroutine.
	epoch   uint64
	current Session
	state   domain.ConnectionStatus
	stop    func() bool

	// Shared with readers.
	mu        sync.RWMutex
	snapshot  domain.ConnectionStatus
	live      Session
	observers []func(domain.ConnectionStatus)
}

// NewManager creates a Manager that dials through dialer.
func NewManager(dialer Dialer, log *logging.Logger, opts ...Option) *Manager {
	m := &Manager{
		dialer:         dialer,
		creds:          noCredentials{},
		maxAttempts:    DefaultMaxAttempts,
		reconnectDelay: DefaultReconnectDelay,
		restartDelay:   DefaultRestartDelay,
		afterFunc:      realAfterFunc,
		log:            log.Sub("connection"),
		cmds:           make(chan command, 16),
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.state.UpdatedAt = time.Now()
	m.snapshot = m.state
	return m
}

// SetMessageHandler registers the receiver of inbound messages. It must be
// called before Run.
func (m *Manager) SetMessageHandler(h MessageHandler) {
	m.handler = h
}

// OnStatusChange registers fn to be called with a snapshot after every
// transition. fn runs on the state machine goroutine and must not block.
func (m *Manager) OnStatusChange(fn func(domain.ConnectionStatus)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

// Status returns a copy of the current connection status.
func (m *Manager) Status() domain.ConnectionStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// Restart drops the current session and starts over after the restart
// delay, whatever the current state.
func (m *Manager) Restart() {
	m.post(command{kind: cmdRestart})
}

// SendText sends text to chat through the live session.
func (m *Manager) SendText(ctx context.Context, chat, text string) error {
	s := m.liveSession()
	if s == nil {
		return ErrNotConnected
	}
	return s.SendText(ctx, chat, text)
}

// SendPresence sends a presence update to chat through the live session.
func (m *Manager) SendPresence(ctx context.Context, chat string, p domain.Presence) error {
	s := m.liveSession()
	if s == nil {
		return ErrNotConnected
	}
	return s.SendPresence(ctx, chat, p)
}

// Run dials the first session and processes events until ctx is done. It
// must be called once.
func (m *Manager) Run(ctx context.Context) error {
	m.log.Info().Msg("connection manager starting")
	defer close(m.done)
	m.start(ctx)

	for {
		var events <-chan Event
		if m.current != nil {
			events = m.current.Events()
		}

		select {
		case <-ctx.Done():
			m.cancelTimer()
			m.dropSession()
			m.log.Info().Msg("connection manager stopped")
			return nil

		case cmd := <-m.cmds:
			m.handleCommand(ctx, cmd)

		case ev, ok := <-events:
			if !ok {
				// Ended without saying why.
				m.handleClose(ctx, ReasonConnectionLost)
				continue
			}
			m.handleEvent(ctx, ev)
		}
	}
}

func (m *Manager) post(cmd command) {
	select {
	case m.cmds <- cmd:
	case <-m.done:
	}
}

func (m *Manager) handleCommand(ctx context.Context, cmd command) {
	switch cmd.kind {
	case cmdRestart:
		m.log.Info().Str("from", m.state.State.String()).Msg("restart requested")
		m.epoch++
		m.cancelTimer()
		m.dropSession()
		m.transition(domain.StateDisconnected, "", 0, "restart")
		m.schedule(m.restartDelay)

	case cmdStart:
		if cmd.epoch != m.epoch {
			return
		}
		m.start(ctx)

	case cmdDialed:
		if cmd.epoch != m.epoch {
			if cmd.session != nil {
				cmd.session.Close()
			}
			return
		}
		if cmd.err != nil {
			m.log.Error().Err(cmd.err).Msg("dial failed")
			m.handleClose(ctx, ReasonConnectFailed)
			return
		}
		m.current = cmd.session
		m.mu.Lock()
		m.live = cmd.session
		m.mu.Unlock()
		m.log.Debug().Msg("session dialed")
	}
}

func (m *Manager) handleEvent(ctx context.Context, ev Event) {
	switch ev.Kind {
	case PairingCodeIssued:
		m.log.Info().Msg("new pairing code issued")
		m.transition(domain.StatePairing, ev.PairingCode, 0, m.state.LastReason)

	case SessionOpened:
		m.log.Info().Msg("connected")
		m.transition(domain.StateConnected, "", 0, "")

	case SessionClosed:
		m.handleClose(ctx, ev.Reason)

	case CredentialsUpdated:
		if err := m.creds.Save(ev.Credentials); err != nil {
			m.log.Error().Err(err).Msg("saving credentials")
		}

	case MessageReceived:
		if ev.Message == nil || m.handler == nil {
			return
		}
		env := *ev.Message
		go m.handler(ctx, env)
	}
}

// handleClose applies the close transition for the current session.
func (m *Manager) handleClose(ctx context.Context, reason string) {
	m.dropSession()
	attempts := m.state.Attempts

	switch {
	case reason == ReasonLoggedOut:
		m.log.Warn().Msg("logged out, pairing required")
		if err := m.creds.Clear(); err != nil {
			m.log.Error().Err(err).Msg("clearing credentials")
		}
		m.transition(domain.StateDisconnected, "", 0, reason)

	case attempts < m.maxAttempts:
		attempts++
		m.log.Warn().
			Str("reason", reason).
			Str("attempt", fmt.Sprintf("%d/%d", attempts, m.maxAttempts)).
			Msg("connection closed, reconnecting")
		m.transition(domain.StateReconnecting, m.state.PairingCode, attempts, reason)
		m.schedule(m.reconnectDelay)

	default:
		m.log.Error().Str("reason", reason).Int("attempts", attempts).Msg("max reconnect attempts reached, restart required")
		m.transition(domain.StateDisconnected, "", 0, reason)
	}
}

// start loads credentials and dials in the background. The result comes
// back to the loop as a cmdDialed command.
func (m *Manager) start(ctx context.Context) {
	creds, err := m.creds.Load()
	if err != nil {
		m.log.Warn().Err(err).Msg("loading credentials, pairing from scratch")
		creds = nil
	}

	epoch := m.epoch
	m.log.Info().Bool("credentials", creds != nil).Msg("dialing transport")
	go func() {
		s, err := m.dialer.Dial(ctx, creds)
		select {
		case m.cmds <- command{kind: cmdDialed, epoch: epoch, session: s, err: err}:
		case <-ctx.Done():
			if s != nil {
				s.Close()
			}
		}
	}()
}

func (m *Manager) schedule(d time.Duration) {
	m.cancelTimer()
	epoch := m.epoch
	m.stop = m.afterFunc(d, func() {
		m.post(command{kind: cmdStart, epoch: epoch})
	})
}

func (m *Manager) cancelTimer() {
	if m.stop != nil {
		m.stop()
		m.stop = nil
	}
}

// dropSession closes and forgets the current session. Later events from it
// are never read.
func (m *Manager) dropSession() {
	if m.current == nil {
		return
	}
	if err := m.current.Close(); err != nil {
		m.log.Debug().Err(err).Msg("closing session")
	}
	m.current = nil
	m.mu.Lock()
	m.live = nil
	m.mu.Unlock()
}

func (m *Manager) transition(state domain.ConnectionState, code string, attempts int, reason string) {
	m.state = domain.ConnectionStatus{
		State:       state,
		PairingCode: code,
		Attempts:    attempts,
		LastReason:  reason,
		UpdatedAt:   time.Now(),
	}

	m.mu.Lock()
	m.snapshot = m.state
	observers := append([]func(domain.ConnectionStatus){}, m.observers...)
	m.mu.Unlock()

	for _, fn := range observers {
		fn(m.state)
	}
}

func (m *Manager) liveSession() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.live
}

type noCredentials struct{}

func (noCredentials) Load() ([]byte, error) { return nil, nil }
func (noCredentials) Save([]byte) error     { return nil }
func (noCredentials) Clear() error          { return nil }
