package gateway

import (
	"net/http"
)

// registerHTTPRoutes sets up all HTTP routes on the server mux.
func (s *Server) registerHTTPRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /qr", s.handleQR)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.Handle("GET /restart", s.requireToken(s.handleRestart, false))
	mux.Handle("POST /restart", s.requireToken(s.handleRestart, false))
	mux.Handle("GET /ws", s.requireToken(s.handleWebSocket, true))

	if s.catalog != nil {
		mux.HandleFunc("GET /api/agents", s.handleListAgents)
		mux.Handle("POST /api/agents", s.requireToken(s.handleCreateAgent, false))
		mux.Handle("PUT /api/agents/{id}", s.requireToken(s.handleUpdateAgent, false))
		mux.Handle("DELETE /api/agents/{id}", s.requireToken(s.handleDeleteAgent, false))
	}
	if s.journal != nil {
		mux.HandleFunc("GET /api/dispatches", s.handleDispatches)
	}

	// Static files and the JSON 404.
	mux.HandleFunc("/", s.handleFallback)
}

// requireToken guards a handler with the admin token. Repeated failures
// from one address are rate limited.
func (s *Server) requireToken(next http.HandlerFunc, allowQuery bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.auth.Enabled() {
			next(w, r)
			return
		}
		if !s.authLimiter.allow(r.RemoteAddr) {
			s.log.Warn().Str("remote", r.RemoteAddr).Msg("rate limited, too many failed auth attempts")
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		res := Authorize(s.auth, presentedToken(r, allowQuery))
		if !res.OK {
			s.authLimiter.recordFailure(r.RemoteAddr)
			s.log.Warn().Str("remote", r.RemoteAddr).Str("path", r.URL.Path).Str("reason", res.Reason).Msg("unauthorized")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	})
}
