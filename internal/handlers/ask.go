package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"mailrag/internal/contextutil"
	"mailrag/internal/retriever"
)

// AskHandler handles HTTP requests for questions against the mail index.
type AskHandler struct {
	engine retriever.Engine
}

// NewAskHandler creates a new AskHandler.
func NewAskHandler(engine retriever.Engine) *AskHandler {
	return &AskHandler{engine: engine}
}

// AskRequest represents the HTTP request payload.
// This mirrors retriever.AskRequest but is defined here for HTTP layer separation.
type AskRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id,omitempty"`
	K         int    `json:"k,omitempty"`
}

// AskResponse represents the HTTP response payload.
type AskResponse struct {
	// The generated answer
	Answer string `json:"answer"`

	// References to the source email chunks used in the answer
	References []ReferenceResponse `json:"references"`

	// Filtered reports whether metadata filters narrowed the search
	Filtered bool `json:"filtered"`
}

// ReferenceResponse represents a source reference in the HTTP response.
type ReferenceResponse struct {
	EntryID    string  `json:"entry_id"`
	MessageID  string  `json:"message_id"`
	Subject    string  `json:"subject"`
	Sender     string  `json:"sender"`
	Date       string  `json:"date"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float32 `json:"score"`
}

// ServeHTTP answers a question about the indexed mailbox.
//
// Returns 400 for invalid requests, 503 when retrieval itself is
// unavailable, and 502 with the retrieved sources when only answer
// generation failed.
func (h *AskHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.K < 0 {
		req.K = 0
	}

	resp, err := h.engine.Ask(ctx, retriever.AskRequest{
		Question:  req.Question,
		SessionID: req.SessionID,
		K:         req.K,
	})
	if err != nil {
		h.handleEngineError(w, r, err, resp)
		return
	}

	writeJSON(w, http.StatusOK, toHTTPResponse(resp))
}

// handleEngineError maps engine errors to HTTP status codes.
func (h *AskHandler) handleEngineError(w http.ResponseWriter, r *http.Request, err error, resp retriever.AskResponse) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var vErr *retriever.ValidationError
	switch {
	case errors.As(err, &vErr):
		logger.WarnContext(ctx, "invalid ask request", "error", err)
		writeError(w, http.StatusBadRequest, vErr.Error())
	case errors.Is(err, retriever.ErrRetrievalUnavailable):
		logger.ErrorContext(ctx, "retrieval unavailable", "error", err)
		writeError(w, http.StatusServiceUnavailable, "Retrieval unavailable")
	case errors.Is(err, retriever.ErrAnswerGeneration):
		// Retrieval worked; return the sources so the client can still
		// show where an answer would have come from.
		logger.ErrorContext(ctx, "answer generation failed", "error", err)
		writeJSON(w, http.StatusBadGateway, toHTTPResponse(resp))
	default:
		logger.ErrorContext(ctx, "ask request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to process question")
	}
}

func toHTTPResponse(resp retriever.AskResponse) AskResponse {
	references := make([]ReferenceResponse, len(resp.References))
	for i, ref := range resp.References {
		references[i] = ReferenceResponse{
			EntryID:    ref.EntryID,
			MessageID:  ref.MessageID,
			Subject:    ref.Subject,
			Sender:     ref.Sender,
			Date:       ref.Date,
			ChunkIndex: ref.ChunkIndex,
			Score:      ref.Score,
		}
	}
	return AskResponse{
		Answer:     resp.Answer,
		References: references,
		Filtered:   resp.Filtered,
	}
}
