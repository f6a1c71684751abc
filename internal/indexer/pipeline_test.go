package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/mock/gomock"

	"mailrag/internal/chunker"
	"mailrag/internal/storage"
	"mailrag/internal/vectorstore"
	"mailrag/internal/vectorstore/mocks"
)

// fakeEmbedder returns fixed-size vectors, or fails when told to.
type fakeEmbedder struct {
	dims  int
	fail  bool
	calls int
}

func (f *fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.fail {
		return nil, errors.New("embedding backend down")
	}
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = make([]float32, f.dims)
	}
	return vecs, nil
}

func newTestRepos(t *testing.T) (*storage.EmailRepo, *storage.ChunkRepo) {
	t.Helper()
	db, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	if err := storage.Migrate(db); err != nil {
		t.Fatalf("storage.Migrate() error = %v", err)
	}
	return storage.NewEmailRepo(db), storage.NewChunkRepo(db)
}

func writeMailbox(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mailbox.jsonl")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("failed to write mailbox: %v", err)
	}
	return path
}

func emailLine(messageID, subject, body string) string {
	return fmt.Sprintf(
		`{"message_id":%q,"subject":%q,"from_list":["alex@example.com"],"to_list":["team@example.com"],"date":"Sun, 31 Jan 2021 10:00:00 +0000","body":%q}`,
		messageID, subject, body,
	)
}

func newTestPipeline(t *testing.T, store vectorstore.VectorStore, embedder Embedder, batchSize int) (*Pipeline, *storage.EmailRepo, *storage.ChunkRepo) {
	t.Helper()
	emailRepo, chunkRepo := newTestRepos(t)
	pipeline := NewPipeline(
		emailRepo, chunkRepo, embedder, store,
		"emails", 4,
		chunker.New(1000, 200),
		batchSize,
		[]string{"[SPAM]"},
	)
	return pipeline, emailRepo, chunkRepo
}

func TestPipeline_IndexMailbox(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockVectorStore(ctrl)

	var upserted []vectorstore.Point
	store.EXPECT().
		Upsert(gomock.Any(), "emails", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, points []vectorstore.Point) error {
			upserted = append(upserted, points...)
			return nil
		}).
		AnyTimes()

	pipeline, emailRepo, chunkRepo := newTestPipeline(t, store, &fakeEmbedder{dims: 4}, 500)

	path := writeMailbox(t,
		emailLine("MSG1", "Quarterly report", "Please review the attached report."),
		emailLine("MSG2", "[SPAM] You won", "Click here now."),
		emailLine("MSG1", "Quarterly report", "Duplicate record."),
		emailLine("MSG3", "Planning", "The meeting is on Monday. Bring the roadmap."),
	)

	stats, err := pipeline.IndexMailbox(context.Background(), path)
	if err != nil {
		t.Fatalf("IndexMailbox() error = %v", err)
	}

	if stats.EmailsRead != 4 {
		t.Errorf("EmailsRead = %d, want 4", stats.EmailsRead)
	}
	if stats.EmailsIndexed != 2 {
		t.Errorf("EmailsIndexed = %d, want 2", stats.EmailsIndexed)
	}
	if stats.Dropped["excluded_subject"] != 1 || stats.Dropped["duplicate_message_id"] != 1 {
		t.Errorf("Dropped = %v", stats.Dropped)
	}
	if stats.ChunksIndexed != len(upserted) {
		t.Errorf("ChunksIndexed = %d but %d points upserted", stats.ChunksIndexed, len(upserted))
	}

	ctx := context.Background()
	if _, err := emailRepo.GetByMessageID(ctx, "MSG1"); err != nil {
		t.Errorf("MSG1 not stored: %v", err)
	}
	if _, err := emailRepo.GetByMessageID(ctx, "MSG2"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("excluded MSG2 should not be stored, got %v", err)
	}

	chunks, err := chunkRepo.ListByMessageID(ctx, "MSG1")
	if err != nil {
		t.Fatalf("ListByMessageID() error = %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks for MSG1, want 1", len(chunks))
	}
	if chunks[0].EntryID != "0_MSG1" {
		t.Errorf("EntryID = %q, want 0_MSG1", chunks[0].EntryID)
	}
	if chunks[0].ID != vectorstore.PointID("0_MSG1") {
		t.Errorf("chunk ID %q does not match derived point ID", chunks[0].ID)
	}
}

func TestPipeline_IndexMailbox_SequentialEntryIDs(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockVectorStore(ctrl)

	var upserted []vectorstore.Point
	store.EXPECT().
		Upsert(gomock.Any(), "emails", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, points []vectorstore.Point) error {
			upserted = append(upserted, points...)
			return nil
		}).
		AnyTimes()

	pipeline, _, _ := newTestPipeline(t, store, &fakeEmbedder{dims: 4}, 500)

	path := writeMailbox(t,
		emailLine("MSG1", "First", "A short note."),
		emailLine("MSG2", "Second", "Another short note."),
	)

	if _, err := pipeline.IndexMailbox(context.Background(), path); err != nil {
		t.Fatalf("IndexMailbox() error = %v", err)
	}

	want := []string{"0_MSG1", "1_MSG2"}
	if len(upserted) != len(want) {
		t.Fatalf("got %d points, want %d", len(upserted), len(want))
	}
	for i, point := range upserted {
		if point.Meta["entry_id"] != want[i] {
			t.Errorf("point %d entry_id = %v, want %s", i, point.Meta["entry_id"], want[i])
		}
		if point.Meta["date"] != "2021-01-31T10:00:00Z" {
			t.Errorf("point %d date = %v", i, point.Meta["date"])
		}
	}
}

func TestPipeline_IndexMailbox_BatchSize(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockVectorStore(ctrl)

	upsertCalls := 0
	store.EXPECT().
		Upsert(gomock.Any(), "emails", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, points []vectorstore.Point) error {
			upsertCalls++
			if len(points) > 2 {
				t.Errorf("batch of %d points exceeds batch size 2", len(points))
			}
			return nil
		}).
		AnyTimes()

	embedder := &fakeEmbedder{dims: 4}
	pipeline, _, _ := newTestPipeline(t, store, embedder, 2)

	// Five emails, one chunk each, batch size two: three flushes.
	var lines []string
	for i := 0; i < 5; i++ {
		lines = append(lines, emailLine(fmt.Sprintf("MSG%d", i), "Note", "A short note."))
	}
	stats, err := pipeline.IndexMailbox(context.Background(), writeMailbox(t, lines...))
	if err != nil {
		t.Fatalf("IndexMailbox() error = %v", err)
	}

	if upsertCalls != 3 {
		t.Errorf("upsert calls = %d, want 3", upsertCalls)
	}
	if stats.Batches != 3 {
		t.Errorf("Batches = %d, want 3", stats.Batches)
	}
	if stats.ChunksIndexed != 5 {
		t.Errorf("ChunksIndexed = %d, want 5", stats.ChunksIndexed)
	}
}

func TestPipeline_IndexMailbox_EmbedFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockVectorStore(ctrl)

	pipeline, _, chunkRepo := newTestPipeline(t, store, &fakeEmbedder{dims: 4, fail: true}, 500)

	path := writeMailbox(t, emailLine("MSG1", "Note", "A short note."))
	stats, err := pipeline.IndexMailbox(context.Background(), path)
	if err == nil {
		t.Fatal("IndexMailbox() should report failed batches")
	}

	if stats.FailedBatches != 1 {
		t.Errorf("FailedBatches = %d, want 1", stats.FailedBatches)
	}
	if stats.ChunksIndexed != 0 {
		t.Errorf("ChunksIndexed = %d, want 0", stats.ChunksIndexed)
	}

	count, err := chunkRepo.Count(context.Background())
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 0 {
		t.Errorf("chunk count = %d after failed batch, want 0", count)
	}
}

func TestPipeline_Rebuild(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockVectorStore(ctrl)

	store.EXPECT().Recreate(gomock.Any(), "emails", 4).Return(nil)
	store.EXPECT().Upsert(gomock.Any(), "emails", gomock.Any()).Return(nil).AnyTimes()

	pipeline, emailRepo, _ := newTestPipeline(t, store, &fakeEmbedder{dims: 4}, 500)
	ctx := context.Background()

	// Pre-existing state from an earlier run.
	err := emailRepo.Insert(ctx, &storage.EmailRecord{
		MessageID: "OLD", ThreadID: "t", Body: "stale",
	})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	path := writeMailbox(t, emailLine("MSG1", "Note", "A short note."))
	stats, err := pipeline.Rebuild(ctx, path)
	if err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	if stats.EmailsIndexed != 1 {
		t.Errorf("EmailsIndexed = %d, want 1", stats.EmailsIndexed)
	}

	if _, err := emailRepo.GetByMessageID(ctx, "OLD"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("stale email should be gone, got %v", err)
	}
}

// Rebuilding twice re-ingests the same mailbox with the same deterministic
// chunk IDs; the second pass must not collide with rows from the first.
func TestPipeline_Rebuild_Twice(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockVectorStore(ctrl)

	store.EXPECT().Recreate(gomock.Any(), "emails", 4).Return(nil).Times(2)
	store.EXPECT().Upsert(gomock.Any(), "emails", gomock.Any()).Return(nil).Times(2)

	pipeline, _, chunkRepo := newTestPipeline(t, store, &fakeEmbedder{dims: 4}, 500)
	ctx := context.Background()

	path := writeMailbox(t, emailLine("MSG1", "Note", "A short note."))
	for i := 1; i <= 2; i++ {
		stats, err := pipeline.Rebuild(ctx, path)
		if err != nil {
			t.Fatalf("Rebuild() #%d error = %v", i, err)
		}
		if stats.EmailsIndexed != 1 {
			t.Errorf("Rebuild() #%d EmailsIndexed = %d, want 1", i, stats.EmailsIndexed)
		}
		if stats.FailedBatches != 0 {
			t.Errorf("Rebuild() #%d FailedBatches = %d, want 0", i, stats.FailedBatches)
		}
	}

	count, err := chunkRepo.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count == 0 {
		t.Error("no chunks stored after second rebuild")
	}
}

func TestPipeline_IndexMailbox_Cancelled(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockVectorStore(ctrl)

	pipeline, _, _ := newTestPipeline(t, store, &fakeEmbedder{dims: 4}, 500)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	path := writeMailbox(t, emailLine("MSG1", "Note", "A short note."))
	if _, err := pipeline.IndexMailbox(ctx, path); !errors.Is(err, context.Canceled) {
		t.Errorf("IndexMailbox() error = %v, want context.Canceled", err)
	}
}
