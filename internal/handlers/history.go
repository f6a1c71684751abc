package handlers

import (
	"net/http"

	"mailrag/internal/contextutil"
	"mailrag/internal/session"
)

// HistoryHandler exposes conversation history for a session.
type HistoryHandler struct {
	sessions *session.Manager
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(sessions *session.Manager) *HistoryHandler {
	return &HistoryHandler{sessions: sessions}
}

// HistoryResponse represents the conversation history payload.
type HistoryResponse struct {
	SessionID string         `json:"session_id"`
	Turns     []session.Turn `json:"turns"`
}

// ServeHTTP serves GET (read history) and DELETE (clear history) for a
// session identified by the session_id query parameter.
func (h *HistoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		logger.WarnContext(ctx, "missing session_id")
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		turns := h.sessions.History(sessionID, 0)
		if turns == nil {
			turns = []session.Turn{}
		}
		writeJSON(w, http.StatusOK, HistoryResponse{
			SessionID: sessionID,
			Turns:     turns,
		})
	case http.MethodDelete:
		h.sessions.Clear(sessionID)
		logger.InfoContext(ctx, "cleared session history", "session_id", sessionID)
		w.WriteHeader(http.StatusNoContent)
	default:
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}
