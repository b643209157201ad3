// Package gateway serves the bot's HTTP surface: connection status, pairing
// code, restart, agent management and a WebSocket status feed.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/soyeahso/funnelbot/internal/agent"
	"github.com/soyeahso/funnelbot/internal/config"
	"github.com/soyeahso/funnelbot/internal/domain"
	"github.com/soyeahso/funnelbot/internal/hooks"
	"github.com/soyeahso/funnelbot/internal/logging"
	"github.com/soyeahso/funnelbot/internal/store"
)

// ConnectionControl is the part of the connection manager the gateway uses.
type ConnectionControl interface {
	Status() domain.ConnectionStatus
	Restart()
	OnStatusChange(fn func(domain.ConnectionStatus))
}

// AgentCatalog is the agent CRUD service.
type AgentCatalog interface {
	List(ctx context.Context) ([]domain.AgentConfig, error)
	Create(ctx context.Context, in agent.AgentInput) (domain.AgentConfig, error)
	Update(ctx context.Context, id string, patch agent.AgentPatch) (domain.AgentConfig, error)
	Delete(ctx context.Context, id string) error
}

// DispatchLog reads the dispatch journal.
type DispatchLog interface {
	RecentDispatches(ctx context.Context, limit int) ([]store.Dispatch, error)
}

// Server is the funnelbot HTTP + WebSocket server.
type Server struct {
	cfg      config.GatewayConfig
	auth     ResolvedAuth
	log      *logging.Logger
	clients  *ClientRegistry
	conn     ConnectionControl
	catalog  AgentCatalog
	journal  DispatchLog
	hooks    *hooks.Manager
	eventSeq atomic.Int64

	mu          sync.RWMutex
	startedAt   time.Time
	httpServer  *http.Server
	addr        string
	upgrader    websocket.Upgrader
	authLimiter *authRateLimiter
}

// ServerOption configures the gateway server.
type ServerOption func(*Server)

// WithConnection wires the connection manager behind /status, /qr,
// /restart and /ws.
func WithConnection(c ConnectionControl) ServerOption {
	return func(s *Server) {
		s.conn = c
	}
}

// WithCatalog wires the agent catalog behind /api/agents.
func WithCatalog(c AgentCatalog) ServerOption {
	return func(s *Server) {
		s.catalog = c
	}
}

// WithJournal exposes the dispatch journal at /api/dispatches.
func WithJournal(j DispatchLog) ServerOption {
	return func(s *Server) {
		s.journal = j
	}
}

// WithHooks sets the hook manager for lifecycle events.
func WithHooks(hm *hooks.Manager) ServerOption {
	return func(s *Server) {
		s.hooks = hm
	}
}

// New creates a new gateway server.
func New(cfg config.GatewayConfig, log *logging.Logger, opts ...ServerOption) *Server {
	s := &Server{
		cfg:         cfg,
		auth:        ResolveAuth(cfg.Auth),
		log:         log.Sub("gateway"),
		clients:     NewClientRegistry(log.Sub("clients")),
		authLimiter: newAuthRateLimiter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     checkWebSocketOrigin(cfg.AllowedOrigins),
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.conn != nil {
		s.conn.OnStatusChange(func(st domain.ConnectionStatus) {
			s.clients.Broadcast(EventConnectionStatus, statusResponse(st), s.nextSeq())
		})
	}
	return s
}

// checkWebSocketOrigin returns a function that validates WebSocket Origin headers.
// If no origins are configured, only same-origin (no Origin header) or non-browser
// clients are allowed. If origins are configured, the Origin must match one of them.
func checkWebSocketOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return isOriginAllowed(origin, allowed)
	}
}

// resolveBindAddr computes the listen address from config.
func resolveBindAddr(cfg config.GatewayConfig) string {
	switch cfg.Bind {
	case "loopback":
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	case "lan", "auto":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	case "custom":
		host := cfg.CustomBindHost
		if host == "" {
			host = "0.0.0.0"
		}
		return fmt.Sprintf("%s:%d", host, cfg.Port)
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// Handler returns the full HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerHTTPRoutes(mux)
	return withMiddleware(mux, s.log, s.cfg.AllowedOrigins)
}

// Start begins listening for HTTP and WebSocket connections.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	s.mu.Lock()
	s.httpServer = srv
	s.addr = ln.Addr().String()
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("bind", s.cfg.Bind).
		Bool("auth", s.auth.Enabled()).
		Msg("gateway server ready")

	if s.hooks != nil {
		s.hooks.Emit(ctx, hooks.EventGatewayStart, map[string]any{
			"addr": ln.Addr().String(),
		})
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		s.log.Info().Msg("shutting down gateway server")
		if s.hooks != nil {
			s.hooks.Emit(context.WithoutCancel(ctx), hooks.EventGatewayStop, nil)
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.clients.CloseAll()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-stopped
	return nil
}

// Addr returns the server's listen address, or empty string if not started.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

func (s *Server) nextSeq() int64 {
	return s.eventSeq.Add(1)
}

func (s *Server) uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.startedAt.IsZero() {
		return 0
	}
	return time.Since(s.startedAt)
}

// handleWebSocket upgrades to a WebSocket, sends the current connection
// status and keeps the client subscribed to changes.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := NewClient(conn, r.RemoteAddr, s.log.Sub("ws"))
	s.clients.Add(client)
	defer func() {
		s.clients.Remove(client.ConnID)
		client.Close()
	}()

	if s.conn != nil {
		if err := client.SendEvent(EventConnectionStatus, statusResponse(s.conn.Status()), s.nextSeq()); err != nil {
			s.log.Warn().Err(err).Str("connId", client.ConnID).Msg("sending status snapshot")
		}
	}

	if err := client.ReadLoop(); err != nil &&
		!websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		s.log.Debug().Err(err).Str("connId", client.ConnID).Msg("ws read ended")
	}
}
