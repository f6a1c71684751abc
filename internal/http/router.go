package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"mailrag/internal/handlers"
	"mailrag/internal/indexer"
	"mailrag/internal/retriever"
	"mailrag/internal/session"
	"mailrag/internal/vectorstore"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Engine      retriever.Engine
	Sessions    *session.Manager
	Pipeline    *indexer.Pipeline
	VectorStore vectorstore.VectorStore
	Collection  string
	MailboxPath string
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(LoggerMiddleware)
	r.Use(CORS)

	askHandler := handlers.NewAskHandler(deps.Engine)
	historyHandler := handlers.NewHistoryHandler(deps.Sessions)
	reindexHandler := handlers.NewReindexHandler(deps.Pipeline, deps.MailboxPath)
	healthHandler := handlers.NewHealthHandler(deps.VectorStore, deps.Collection)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodPost, "/ask", askHandler)
		r.Method(http.MethodGet, "/history", historyHandler)
		r.Method(http.MethodDelete, "/history", historyHandler)
		r.Method(http.MethodPost, "/reindex", reindexHandler)
		r.Method(http.MethodGet, "/health", healthHandler)
	})

	return r
}
