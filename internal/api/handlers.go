package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/skomatsu/stella/internal/config"
	"github.com/skomatsu/stella/internal/session"
	"github.com/skomatsu/stella/internal/storage/sqlite"
	"github.com/skomatsu/stella/internal/transport"
	"github.com/skomatsu/stella/pkg/logger"
)

// Handler contains the API handlers
type Handler struct {
	sessions *session.Manager
	storage  *sqlite.SessionStorage
	modes    *config.ModeStore
	hub      *transport.Hub
	config   *config.Config
	logger   *logger.Logger
	started  time.Time
}

// NewHandler creates a new API handler
func NewHandler(sessions *session.Manager, storage *sqlite.SessionStorage, modes *config.ModeStore, hub *transport.Hub, cfg *config.Config, log *logger.Logger) *Handler {
	return &Handler{
		sessions: sessions,
		storage:  storage,
		modes:    modes,
		hub:      hub,
		config:   cfg,
		logger:   log.Named("api-handler"),
		started:  time.Now().UTC(),
	}
}

// GetStatus returns the orchestrator status
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"timestamp":      time.Now().UTC(),
		"uptime_seconds": int(time.Since(h.started).Seconds()),
		"mode":           string(h.modes.Mode()),
		"language":       h.modes.Language(),
		"kiosk_online":   h.hub.Connected(),
		"session_active": h.sessions.Active(),
	}
	if h.sessions.Active() {
		response["session_id"] = h.sessions.Context().SessionID
		response["session_state"] = string(h.sessions.Context().State)
	}

	WriteJSON(w, http.StatusOK, response)
}

// ListSessions returns the most recent stored sessions
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	limit := h.config.Storage.MaxSessionsInAPI
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed < limit {
			limit = parsed
		}
	}

	records, err := h.storage.ListSessions(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list sessions", logger.Error(err))
		http.Error(w, "Failed to list sessions", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"timestamp": time.Now().UTC(),
		"count":     len(records),
		"sessions":  records,
	}
	WriteJSON(w, http.StatusOK, response)
}

// GetSession returns one stored session with its transcript
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "Missing session ID", http.StatusBadRequest)
		return
	}

	record, err := h.storage.GetSession(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to get session",
			logger.String("session_id", id),
			logger.Error(err))
		http.Error(w, "Failed to get session", http.StatusInternalServerError)
		return
	}
	if record == nil {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	WriteJSON(w, http.StatusOK, record)
}

// GetMode returns the current reception mode and language
func (h *Handler) GetMode(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{
		"mode":     string(h.modes.Mode()),
		"language": h.modes.Language(),
	})
}

// SetMode switches the reception mode
func (h *Handler) SetMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if !h.modes.SetMode(config.Mode(req.Mode)) {
		http.Error(w, "Invalid mode: "+req.Mode, http.StatusBadRequest)
		return
	}

	h.logger.Info("Reception mode changed via API",
		logger.String("mode", req.Mode))
	WriteJSON(w, http.StatusOK, map[string]string{
		"status": "success",
		"mode":   req.Mode,
	})
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
