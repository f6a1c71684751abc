package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func insertTestEmail(t *testing.T, repo *ChunkRepo, messageID string) {
	t.Helper()
	if err := NewEmailRepo(repo.db).Insert(context.Background(), testEmail(messageID)); err != nil {
		t.Fatalf("Insert(%s) error = %v", messageID, err)
	}
}

func TestChunkRepo_InsertBatchAndList(t *testing.T) {
	repo := newTestDB(t)
	ctx := context.Background()
	insertTestEmail(t, repo, "MSG1")

	var chunks []*ChunkRecord
	for i := 0; i < 3; i++ {
		chunks = append(chunks, &ChunkRecord{
			ID:         fmt.Sprintf("00000000-0000-0000-0000-00000000000%d", i),
			EntryID:    fmt.Sprintf("%d_MSG1", i),
			MessageID:  "MSG1",
			ChunkIndex: i,
			Text:       fmt.Sprintf("chunk %d", i),
		})
	}
	if err := repo.InsertBatch(ctx, chunks); err != nil {
		t.Fatalf("InsertBatch() error = %v", err)
	}

	got, err := repo.ListByMessageID(ctx, "MSG1")
	if err != nil {
		t.Fatalf("ListByMessageID() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d chunks, want 3", len(got))
	}
	for i, chunk := range got {
		if chunk.ChunkIndex != i {
			t.Errorf("chunk %d out of order: index %d", i, chunk.ChunkIndex)
		}
		if chunk.EntryID != fmt.Sprintf("%d_MSG1", i) {
			t.Errorf("chunk %d entry ID = %q", i, chunk.EntryID)
		}
	}
}

func TestChunkRepo_InsertBatch_Atomic(t *testing.T) {
	repo := newTestDB(t)
	ctx := context.Background()
	insertTestEmail(t, repo, "MSG1")

	// Second record reuses the first ID; the whole batch must roll back.
	err := repo.InsertBatch(ctx, []*ChunkRecord{
		{ID: "00000000-0000-0000-0000-000000000000", EntryID: "0_MSG1", MessageID: "MSG1", ChunkIndex: 0, Text: "a"},
		{ID: "00000000-0000-0000-0000-000000000000", EntryID: "1_MSG1", MessageID: "MSG1", ChunkIndex: 1, Text: "b"},
	})
	if err == nil {
		t.Fatal("InsertBatch() should fail on duplicate ID")
	}

	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 0 {
		t.Errorf("Count() = %d after failed batch, want 0", count)
	}
}

func TestChunkRepo_InsertBatch_Empty(t *testing.T) {
	repo := newTestDB(t)
	if err := repo.InsertBatch(context.Background(), nil); err != nil {
		t.Errorf("InsertBatch(nil) error = %v", err)
	}
}

func TestChunkRepo_GetByID(t *testing.T) {
	repo := newTestDB(t)
	ctx := context.Background()
	insertTestEmail(t, repo, "MSG1")

	chunk := &ChunkRecord{
		ID:         "00000000-0000-0000-0000-000000000001",
		EntryID:    "0_MSG1",
		MessageID:  "MSG1",
		ChunkIndex: 0,
		Text:       "hello",
	}
	if err := repo.InsertBatch(ctx, []*ChunkRecord{chunk}); err != nil {
		t.Fatalf("InsertBatch() error = %v", err)
	}

	got, err := repo.GetByID(ctx, chunk.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Text != "hello" || got.EntryID != "0_MSG1" {
		t.Errorf("GetByID() = %+v", got)
	}

	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID(missing) error = %v, want ErrNotFound", err)
	}
}

func TestChunkRepo_ListByMessageID_Empty(t *testing.T) {
	repo := newTestDB(t)
	got, err := repo.ListByMessageID(context.Background(), "MSG1")
	if err != nil {
		t.Fatalf("ListByMessageID() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d chunks, want 0", len(got))
	}
}
