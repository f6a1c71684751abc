package indexer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mailrag/internal/chunker"
	"mailrag/internal/contextutil"
	"mailrag/internal/mail"
	"mailrag/internal/storage"
	"mailrag/internal/vectorstore"
)

// Embedder generates embeddings for a batch of texts, preserving order.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Pipeline orchestrates the indexing of a mailbox dump into SQLite and Qdrant.
type Pipeline struct {
	emailRepo   storage.EmailStore
	chunkRepo   storage.ChunkStore
	embedder    Embedder
	vectorStore vectorstore.VectorStore
	collection  string
	vectorSize  int
	chunker     *chunker.SentenceChunker
	batchSize   int
	excludes    []string
}

// NewPipeline creates a new indexing pipeline. batchSize bounds how many
// chunks are embedded and upserted per flush.
func NewPipeline(
	emailRepo storage.EmailStore,
	chunkRepo storage.ChunkStore,
	embedder Embedder,
	vectorStore vectorstore.VectorStore,
	collection string,
	vectorSize int,
	ch *chunker.SentenceChunker,
	batchSize int,
	excludeSubjectPrefixes []string,
) *Pipeline {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Pipeline{
		emailRepo:   emailRepo,
		chunkRepo:   chunkRepo,
		embedder:    embedder,
		vectorStore: vectorStore,
		collection:  collection,
		vectorSize:  vectorSize,
		chunker:     ch,
		batchSize:   batchSize,
		excludes:    excludeSubjectPrefixes,
	}
}

// pendingChunk is a chunk waiting for its embedding batch to flush.
type pendingChunk struct {
	entryID string
	email   *mail.NormalizedEmail
	chunk   chunker.Chunk
}

// IndexMailbox reads a JSONL mailbox dump and indexes every accepted email.
// Per-email failures are counted and logged but do not stop the run; the
// returned stats describe what happened. Index entry IDs are assigned from
// a single monotonic sequence over the whole run, so a given input file
// always produces the same entries.
func (p *Pipeline) IndexMailbox(ctx context.Context, mailboxPath string) (*IndexStats, error) {
	logger := contextutil.LoggerFromContext(ctx)

	readResult, err := mail.ReadJSONLFile(ctx, mailboxPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read mailbox: %w", err)
	}

	stats := NewIndexStats()
	stats.EmailsRead = len(readResult.Emails)
	stats.MalformedLines = readResult.Malformed

	logger.InfoContext(ctx, "starting mailbox indexing",
		"path", mailboxPath,
		"emails", stats.EmailsRead,
		"malformed_lines", stats.MalformedLines,
	)

	run := mail.NewRun(p.excludes)
	var pending []pendingChunk
	sequence := 0

	for i := range readResult.Emails {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		raw := readResult.Emails[i]
		normalized, err := run.Normalize(raw)
		if err != nil {
			var dropErr *mail.DropError
			if errors.As(err, &dropErr) {
				stats.Drop(dropErr.Reason)
				logger.DebugContext(ctx, "dropped email", "reason", dropErr.Reason, "message_id", raw.MessageID)
				continue
			}
			stats.Failed++
			logger.ErrorContext(ctx, "failed to normalize email", "message_id", raw.MessageID, "error", err)
			continue
		}

		if err := p.storeEmail(ctx, normalized); err != nil {
			stats.Failed++
			logger.ErrorContext(ctx, "failed to store email", "message_id", normalized.MessageID, "error", err)
			continue
		}
		stats.EmailsIndexed++

		for _, chunk := range p.chunker.Chunk(normalized) {
			pending = append(pending, pendingChunk{
				entryID: fmt.Sprintf("%d_%s", sequence, normalized.MessageID),
				email:   normalized,
				chunk:   chunk,
			})
			sequence++
		}

		for len(pending) >= p.batchSize {
			batch := pending[:p.batchSize]
			pending = pending[p.batchSize:]
			p.flushBatch(ctx, batch, stats)
		}
	}

	if len(pending) > 0 {
		p.flushBatch(ctx, pending, stats)
	}

	logger.InfoContext(ctx, "mailbox indexing completed",
		"emails_read", stats.EmailsRead,
		"emails_indexed", stats.EmailsIndexed,
		"chunks_indexed", stats.ChunksIndexed,
		"dropped", stats.TotalDropped(),
		"failed", stats.Failed,
		"failed_batches", stats.FailedBatches,
	)

	if stats.FailedBatches > 0 {
		return stats, fmt.Errorf("indexing completed with %d failed batches", stats.FailedBatches)
	}
	return stats, nil
}

// Rebuild drops all indexed state and indexes the mailbox from scratch.
func (p *Pipeline) Rebuild(ctx context.Context, mailboxPath string) (*IndexStats, error) {
	logger := contextutil.LoggerFromContext(ctx)
	logger.InfoContext(ctx, "rebuilding index", "collection", p.collection)

	if err := p.vectorStore.Recreate(ctx, p.collection, p.vectorSize); err != nil {
		return nil, fmt.Errorf("failed to recreate collection: %w", err)
	}
	if err := p.emailRepo.DeleteAll(ctx); err != nil {
		return nil, fmt.Errorf("failed to clear email store: %w", err)
	}

	return p.IndexMailbox(ctx, mailboxPath)
}

// storeEmail persists the email metadata snapshot.
func (p *Pipeline) storeEmail(ctx context.Context, email *mail.NormalizedEmail) error {
	record := &storage.EmailRecord{
		MessageID:   email.MessageID,
		ThreadID:    email.ThreadID,
		Subject:     email.Subject,
		Sender:      email.Sender(),
		Recipients:  email.Recipients(),
		Date:        email.Date,
		Attachments: strings.Join(email.AttachmentNames(), ", "),
		Body:        email.Body,
	}
	return p.emailRepo.Insert(ctx, record)
}

// flushBatch embeds a batch of chunks and writes them to SQLite and the
// vector store. A failed batch is counted and skipped; later batches still
// run so one bad flush does not abort a long ingestion.
func (p *Pipeline) flushBatch(ctx context.Context, batch []pendingChunk, stats *IndexStats) {
	logger := contextutil.LoggerFromContext(ctx)

	texts := make([]string, len(batch))
	for i, item := range batch {
		texts[i] = item.chunk.Text
	}

	embeddings, err := p.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		stats.FailedBatches++
		logger.ErrorContext(ctx, "failed to embed batch", "size", len(batch), "error", err)
		return
	}

	records := make([]*storage.ChunkRecord, len(batch))
	points := make([]vectorstore.Point, len(batch))
	for i, item := range batch {
		pointID := vectorstore.PointID(item.entryID)
		records[i] = &storage.ChunkRecord{
			ID:         pointID,
			EntryID:    item.entryID,
			MessageID:  item.email.MessageID,
			ChunkIndex: item.chunk.Index,
			Text:       item.chunk.Text,
		}
		points[i] = vectorstore.Point{
			ID:  pointID,
			Vec: embeddings[i],
			Meta: map[string]any{
				"entry_id":    item.entryID,
				"message_id":  item.email.MessageID,
				"thread_id":   item.email.ThreadID,
				"subject":     item.email.Subject,
				"sender":      item.email.Sender(),
				"recipients":  item.email.Recipients(),
				"date":        item.email.Date,
				"attachments": strings.Join(item.email.AttachmentNames(), ", "),
				"chunk_index": item.chunk.Index,
				"text":        item.chunk.Text,
			},
		}
	}

	if err := p.chunkRepo.InsertBatch(ctx, records); err != nil {
		stats.FailedBatches++
		logger.ErrorContext(ctx, "failed to store chunk batch", "size", len(batch), "error", err)
		return
	}

	if err := p.vectorStore.Upsert(ctx, p.collection, points); err != nil {
		stats.FailedBatches++
		logger.ErrorContext(ctx, "failed to upsert vector batch", "size", len(batch), "error", err)
		return
	}

	stats.ChunksIndexed += len(batch)
	stats.Batches++
}
