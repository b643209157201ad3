package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/soyeahso/funnelbot/internal/agent"
	"github.com/soyeahso/funnelbot/internal/domain"
	"github.com/soyeahso/funnelbot/internal/version"
)

// User-facing texts of the status routes.
const (
	msgOnline        = "✅ Bot conectado a WhatsApp"
	msgWaiting       = "⏳ Esperando conexión. Ve a /qr para obtener el código"
	msgConnected     = "✅ Conectado"
	msgDisconnected  = "❌ Desconectado"
	msgScan          = "📱 Escanea este código con WhatsApp"
	msgScanHelp      = "Copia el texto QR y usa https://www.qrcode-monkey.com/ para visualizarlo"
	msgAlreadyPaired = "✅ Ya estás conectado a WhatsApp. No necesitas escanear el QR."
	msgQRPending     = "⏳ QR no disponible aún. Espera 10-20 segundos y recarga esta página."
	msgRestarting    = "🔄 Reiniciando conexión. Espera 10 segundos y ve a /qr"
	msgAgentMissing  = "Agente no encontrado"
)

const maxAgentBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func (s *Server) status() domain.ConnectionStatus {
	if s.conn == nil {
		return domain.ConnectionStatus{State: domain.StateDisconnected}
	}
	return s.conn.Status()
}

func statusResponse(st domain.ConnectionStatus) StatusResponse {
	msg := msgDisconnected
	if st.Connected() {
		msg = msgConnected
	}
	ts := st.UpdatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return StatusResponse{
		Connected:          st.Connected(),
		HasQR:              st.HasPairingCode(),
		QR:                 st.PairingCode,
		ConnectionAttempts: st.Attempts,
		State:              st.State.String(),
		LastReason:         st.LastReason,
		Timestamp:          ts.UTC(),
		Message:            msg,
	}
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: version.Version,
		Uptime:  s.uptime().Truncate(time.Second).String(),
		Clients: s.clients.Count(),
	})
}

// handleIndex serves index.html to browsers when the static directory has
// one, and the JSON status page otherwise.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if strings.Contains(r.Header.Get("Accept"), "text/html") {
		if index, ok := s.staticFile("index.html"); ok {
			http.ServeFile(w, r, index)
			return
		}
	}

	st := s.status()
	msg := msgWaiting
	if st.Connected() {
		msg = msgOnline
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "online",
		"connected":   st.Connected(),
		"message":     msg,
		"qrAvailable": st.HasPairingCode(),
		"state":       st.State.String(),
		"version":     version.Version,
		"endpoints": map[string]string{
			"qr":      "/qr - Obtener código QR",
			"status":  "/status - Estado de conexión",
			"restart": "/restart - Reiniciar conexión",
			"agents":  "/api/agents - Gestionar agentes",
		},
	})
}

func (s *Server) handleQR(w http.ResponseWriter, r *http.Request) {
	st := s.status()
	switch {
	case st.HasPairingCode():
		writeJSON(w, http.StatusOK, map[string]any{
			"success":      true,
			"qr":           st.PairingCode,
			"message":      msgScan,
			"instructions": msgScanHelp,
		})
	case st.Connected():
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": msgAlreadyPaired})
	default:
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": msgQRPending})
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse(s.status())
	resp.QR = ""
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	if s.conn == nil {
		writeError(w, http.StatusServiceUnavailable, "connection manager not available")
		return
	}
	s.log.Info().Str("remote", r.RemoteAddr).Msg("restart requested")
	s.conn.Restart()
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": msgRestarting})
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := s.catalog.List(r.Context())
	if err != nil {
		s.agentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agents)
}

func (s *Server) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	var in agent.AgentInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAgentBody)).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	created, err := s.catalog.Create(r.Context(), in)
	if err != nil {
		s.agentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, created)
}

func (s *Server) handleUpdateAgent(w http.ResponseWriter, r *http.Request) {
	var patch agent.AgentPatch
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAgentBody)).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	updated, err := s.catalog.Update(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		s.agentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteAgent(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.agentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// agentError maps catalog errors onto HTTP statuses.
func (s *Server) agentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, agent.ErrAgentNotFound):
		writeError(w, http.StatusNotFound, msgAgentMissing)
	case errors.Is(err, agent.ErrInvalidAgent):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error().Err(err).Msg("agent store failure")
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleDispatches(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	entries, err := s.journal.RecentDispatches(r.Context(), limit)
	if err != nil {
		s.log.Error().Err(err).Msg("reading dispatch journal")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleFallback serves static files for GET requests outside /api/ and
// a JSON 404 for everything else.
func (s *Server) handleFallback(w http.ResponseWriter, r *http.Request) {
	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && !strings.HasPrefix(r.URL.Path, "/api/") {
		if file, ok := s.staticFile(r.URL.Path); ok {
			http.ServeFile(w, r, file)
			return
		}
	}
	handleNotFound(w, r)
}

// staticFile resolves a URL path to a regular file inside the static
// directory.
func (s *Server) staticFile(urlPath string) (string, bool) {
	if s.cfg.StaticDir == "" {
		return "", false
	}
	rel := strings.TrimPrefix(path.Clean("/"+urlPath), "/")
	if rel == "" {
		rel = "index.html"
	}
	full := filepath.Join(s.cfg.StaticDir, filepath.FromSlash(rel))
	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		return "", false
	}
	return full, true
}

// handleNotFound returns a 404 for unknown routes.
func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "not found",
		"path":  r.URL.Path,
	})
}
