package indexer

import (
	"context"
	"testing"

	"go.uber.org/mock/gomock"

	"mailrag/internal/chunker"
	"mailrag/internal/mail"
	"mailrag/internal/vectorstore"
	"mailrag/internal/vectorstore/mocks"
)

func TestIndexStats_Drop(t *testing.T) {
	stats := NewIndexStats()
	stats.Drop(mail.DropEmptyBody)
	stats.Drop(mail.DropEmptyBody)
	stats.Drop(mail.DropDuplicate)

	if stats.Dropped["empty_body"] != 2 {
		t.Errorf("empty_body = %d, want 2", stats.Dropped["empty_body"])
	}
	if stats.TotalDropped() != 3 {
		t.Errorf("TotalDropped() = %d, want 3", stats.TotalDropped())
	}
}

func TestPipeline_CoverageStats(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockVectorStore(ctrl)
	store.EXPECT().
		GetCollectionInfo(gomock.Any(), "emails").
		Return(&vectorstore.CollectionInfo{VectorSize: 4, PointsCount: 7, Status: "green"}, nil)

	emailRepo, chunkRepo := newTestRepos(t)
	pipeline := NewPipeline(emailRepo, chunkRepo, &fakeEmbedder{dims: 4}, store, "emails", 4, chunker.New(1000, 200), 500, nil)

	stats, err := pipeline.CoverageStats(context.Background())
	if err != nil {
		t.Fatalf("CoverageStats() error = %v", err)
	}
	if stats.EmailsStored != 0 || stats.ChunksStored != 0 {
		t.Errorf("stored counts = %d/%d, want 0/0", stats.EmailsStored, stats.ChunksStored)
	}
	if stats.PointsInIndex != 7 || stats.VectorSize != 4 || stats.CollectionStatus != "green" {
		t.Errorf("collection stats = %+v", stats)
	}
}
