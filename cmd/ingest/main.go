// Command ingest builds or rebuilds the email index from a JSONL mailbox
// dump, then exits. Useful for batch ingestion without running the API.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"log/slog"
	"os"

	"mailrag/internal/chunker"
	"mailrag/internal/config"
	"mailrag/internal/indexer"
	"mailrag/internal/llm"
	"mailrag/internal/storage"
	"mailrag/internal/vectorstore"
)

func main() {
	mailboxFlag := flag.String("mailbox", "", "path to the JSONL mailbox dump (defaults to MAILBOX_PATH)")
	rebuild := flag.Bool("rebuild", false, "drop the existing index and rebuild from scratch")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})
	slog.SetDefault(slog.New(handler))

	mailboxPath := *mailboxFlag
	if mailboxPath == "" {
		mailboxPath = cfg.MailboxPath
	}
	if mailboxPath == "" {
		log.Fatal("No mailbox path: pass -mailbox or set MAILBOX_PATH")
	}

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

	vectorStore, err := vectorstore.NewQdrantStore(cfg.QdrantURL)
	if err != nil {
		log.Fatalf("Failed to create Qdrant client: %v", err)
	}

	ctx := context.Background()
	if err := vectorStore.EnsureCollection(ctx, cfg.QdrantCollection, cfg.QdrantVectorSize); err != nil {
		log.Fatalf("Failed to ensure Qdrant collection: %v", err)
	}

	embedder := llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.LLMAPIKey, cfg.EmbeddingModelName, cfg.QdrantVectorSize)

	pipeline := indexer.NewPipeline(
		storage.NewEmailRepo(db),
		storage.NewChunkRepo(db),
		embedder,
		vectorStore,
		cfg.QdrantCollection,
		cfg.QdrantVectorSize,
		chunker.New(cfg.MaxChunkChars, cfg.ChunkOverlapChars),
		cfg.EmbedBatchSize,
		cfg.ExcludeSubjectPrefixes,
	)

	var stats *indexer.IndexStats
	if *rebuild {
		slog.Info("Rebuilding index", "mailbox", mailboxPath)
		stats, err = pipeline.Rebuild(ctx, mailboxPath)
	} else {
		slog.Info("Indexing mailbox", "mailbox", mailboxPath)
		stats, err = pipeline.IndexMailbox(ctx, mailboxPath)
	}
	if err != nil {
		slog.Error("Indexing finished with errors", "error", err)
	}

	if stats != nil {
		report, _ := json.MarshalIndent(stats, "", "  ")
		os.Stdout.Write(append(report, '\n'))
	}

	coverage, cerr := pipeline.CoverageStats(ctx)
	if cerr != nil {
		slog.Warn("Could not read coverage stats", "error", cerr)
	} else {
		report, _ := json.MarshalIndent(coverage, "", "  ")
		os.Stdout.Write(append(report, '\n'))
	}

	if err != nil {
		os.Exit(1)
	}
}
