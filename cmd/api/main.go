package main

import (
	"context"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"

	"mailrag/internal/chunker"
	"mailrag/internal/config"
	"mailrag/internal/http"
	"mailrag/internal/indexer"
	"mailrag/internal/llm"
	"mailrag/internal/retriever"
	"mailrag/internal/session"
	"mailrag/internal/storage"
	"mailrag/internal/vectorstore"
)

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging with configurable level and format
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	// Initialize database
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	// Create repository instances
	emailRepo := storage.NewEmailRepo(db)
	chunkRepo := storage.NewChunkRepo(db)

	ctx := context.Background()

	// Initialize Qdrant vector store
	vectorStore, err := vectorstore.NewQdrantStore(cfg.QdrantURL)
	if err != nil {
		log.Fatalf("Failed to create Qdrant client: %v", err)
	}

	// Ensure collection exists with correct vector size
	if err := vectorStore.EnsureCollection(ctx, cfg.QdrantCollection, cfg.QdrantVectorSize); err != nil {
		log.Fatalf("Failed to ensure Qdrant collection: %v", err)
	}
	slog.Info("Qdrant collection ready", "collection", cfg.QdrantCollection, "vector_size", cfg.QdrantVectorSize)

	// Validate embedding client vector size (fail-fast)
	embedder := llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.LLMAPIKey, cfg.EmbeddingModelName, cfg.QdrantVectorSize)
	testEmbeddings, err := embedder.EmbedTexts(ctx, []string{"test"})
	if err != nil {
		log.Fatalf("Failed to validate embedding client: %v", err)
	}
	if len(testEmbeddings) == 0 || len(testEmbeddings[0]) != cfg.QdrantVectorSize {
		log.Fatalf("Embedding vector size mismatch: expected %d, got %d", cfg.QdrantVectorSize, len(testEmbeddings[0]))
	}
	slog.Info("Embedding client validated", "vector_size", cfg.QdrantVectorSize)

	// Create indexing pipeline
	pipeline := indexer.NewPipeline(
		emailRepo,
		chunkRepo,
		embedder,
		vectorStore,
		cfg.QdrantCollection,
		cfg.QdrantVectorSize,
		chunker.New(cfg.MaxChunkChars, cfg.ChunkOverlapChars),
		cfg.EmbedBatchSize,
		cfg.ExcludeSubjectPrefixes,
	)

	// Create LLM client (external service layer)
	llmClient := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModelName)

	// Create session store and retrieval engine
	sessions := session.NewManager(cfg.MaxHistoryTurns)
	engine := retriever.NewEngine(
		embedder,
		llmClient,
		llmClient,
		vectorStore,
		cfg.QdrantCollection,
		sessions,
		cfg.KCandidates,
		cfg.KFinal,
		cfg.MinFilteredResults,
		cfg.HistoryWindow,
	)
	slog.Info("Retrieval engine initialized")

	// Create router with dependencies
	deps := &http.Deps{
		Engine:      engine,
		Sessions:    sessions,
		Pipeline:    pipeline,
		VectorStore: vectorStore,
		Collection:  cfg.QdrantCollection,
		MailboxPath: cfg.MailboxPath,
	}
	router := http.NewRouter(deps)

	// Index the mailbox in the background after the router is ready, when
	// a mailbox path is configured. An unset path means the index was
	// built out-of-band (e.g. with the ingest CLI).
	if cfg.MailboxPath != "" {
		go func() {
			indexCtx := context.Background()
			slog.Info("Starting background mailbox indexing", "path", cfg.MailboxPath)
			stats, err := pipeline.IndexMailbox(indexCtx, cfg.MailboxPath)
			if err != nil {
				slog.Error("Indexing completed with errors", "error", err)
				return
			}
			slog.Info("Indexing completed successfully",
				"emails_indexed", stats.EmailsIndexed,
				"chunks_indexed", stats.ChunksIndexed,
				"dropped", stats.TotalDropped(),
			)
		}()
	}

	// Start API server
	addr := ":" + cfg.APIPort
	slog.Info("Starting API server", "addr", addr)
	slog.Debug("LLM configuration", "base_url", cfg.LLMBaseURL, "model", cfg.LLMModelName)
	if err := nethttp.ListenAndServe(addr, router); err != nil {
		log.Fatalf("API server failed to start: %v", err)
	}
}
