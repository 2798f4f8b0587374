package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/vhtoggle/internal/controller"
	"github.com/nerrad567/vhtoggle/internal/device"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// deviceResponse is the body of GET /device.
type deviceResponse struct {
	DeviceID    string              `json:"device_id"`
	DeviceName  string              `json:"device_name"`
	StoredState *device.State       `json:"stored_state"`
	Label       string              `json:"label,omitempty"`
	LastOutcome *controller.Outcome `json:"last_outcome,omitempty"`
}

// handleGetDevice returns the persisted state and the last cycle outcome.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	resp := deviceResponse{
		DeviceID:   s.deviceID,
		DeviceName: s.deviceName,
	}

	stored, ok, err := s.store.Load(r.Context())
	if err != nil {
		s.logger.Error("loading stored state", "error", err)
		writeInternalError(w, "failed to load device state")
		return
	}
	if ok {
		resp.StoredState = &stored
		resp.Label = stored.Label()
	}

	if outcome, ok := s.outcomes.LastOutcome(); ok {
		resp.LastOutcome = &outcome
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleToggle queues a cycle. The mode query parameter selects "toggle"
// (default) or "refresh".
func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	mode := controller.ModeInteractive
	if raw := r.URL.Query().Get("mode"); raw != "" {
		parsed, err := controller.ParseMode(raw)
		if err != nil {
			writeBadRequest(w, err.Error())
			return
		}
		mode = parsed
	}

	if s.triggers == nil {
		writeUnavailable(w, "toggle requests are not accepted in this mode")
		return
	}

	if !controller.Trigger(s.triggers, mode) {
		s.logger.Warn("trigger queue full, dropping request",
			"mode", mode.String(),
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
		writeError(w, http.StatusTooManyRequests, ErrCodeBusy, "a cycle is already queued")
		return
	}

	s.logger.Info("cycle queued", "mode", mode.String(), "request_id", r.Context().Value(ctxKeyRequestID))
	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "queued",
		"mode":   mode.String(),
	})
}

// handleGetHistory returns recent state transitions, newest first.
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeUnavailable(w, "state history is not configured")
		return
	}

	limit, ok := parseHistoryLimit(r.URL.Query().Get("limit"))
	if !ok {
		writeBadRequest(w, "invalid limit")
		return
	}

	entries, err := s.history.GetHistory(r.Context(), s.deviceID, limit)
	if err != nil {
		s.logger.Error("loading state history", "error", err)
		writeInternalError(w, "failed to load state history")
		return
	}
	if entries == nil {
		entries = []device.StateHistoryEntry{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": s.deviceID,
		"entries":   entries,
		"count":     len(entries),
	})
}

// parseHistoryLimit parses the limit query parameter.
func parseHistoryLimit(raw string) (int, bool) {
	if raw == "" {
		return defaultHistoryLimit, true
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 || limit > maxHistoryLimit {
		return 0, false
	}
	return limit, true
}
