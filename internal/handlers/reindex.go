package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"

	"mailrag/internal/contextutil"
	"mailrag/internal/indexer"
)

// Rebuilder rebuilds the index from a mailbox dump.
type Rebuilder interface {
	Rebuild(ctx context.Context, mailboxPath string) (*indexer.IndexStats, error)
}

// ReindexHandler triggers a full index rebuild. Only one rebuild may run
// at a time.
type ReindexHandler struct {
	pipeline    Rebuilder
	mailboxPath string
	running     atomic.Bool
}

// NewReindexHandler creates a new ReindexHandler.
func NewReindexHandler(pipeline Rebuilder, mailboxPath string) *ReindexHandler {
	return &ReindexHandler{
		pipeline:    pipeline,
		mailboxPath: mailboxPath,
	}
}

// ReindexResponse acknowledges a rebuild request.
type ReindexResponse struct {
	Status string `json:"status"`
}

// ServeHTTP starts a rebuild in the background. Returns 202 Accepted when
// the rebuild was started and 409 Conflict when one is already running.
func (h *ReindexHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if !h.running.CompareAndSwap(false, true) {
		logger.WarnContext(ctx, "rebuild already in progress")
		writeError(w, http.StatusConflict, "Reindex already in progress")
		return
	}

	logger.InfoContext(ctx, "starting index rebuild", "mailbox", h.mailboxPath)

	// The rebuild outlives the request, so detach it from the request
	// context while keeping the logger.
	go func() {
		defer h.running.Store(false)

		bgCtx := contextutil.WithLogger(context.Background(), slog.Default())
		stats, err := h.pipeline.Rebuild(bgCtx, h.mailboxPath)
		if err != nil {
			slog.Error("index rebuild failed", "error", err)
			return
		}
		slog.Info("index rebuild completed",
			"emails_indexed", stats.EmailsIndexed,
			"chunks_indexed", stats.ChunksIndexed,
			"dropped", stats.TotalDropped(),
		)
	}()

	writeJSON(w, http.StatusAccepted, ReindexResponse{Status: "started"})
}
