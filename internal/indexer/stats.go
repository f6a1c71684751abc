package indexer

import (
	"context"
	"fmt"

	"mailrag/internal/mail"
)

// IndexStats is the report for one indexing run.
type IndexStats struct {
	// EmailsRead is the number of records parsed from the mailbox file.
	EmailsRead int `json:"emails_read"`
	// MalformedLines is the number of unparseable JSONL lines skipped.
	MalformedLines int `json:"malformed_lines"`
	// EmailsIndexed is the number of emails accepted and stored.
	EmailsIndexed int `json:"emails_indexed"`
	// Dropped is the per-reason breakdown of excluded records.
	Dropped map[string]int `json:"dropped,omitempty"`
	// Failed is the number of emails that errored outside the drop rules.
	Failed int `json:"failed"`
	// ChunksIndexed is the number of chunks embedded and stored.
	ChunksIndexed int `json:"chunks_indexed"`
	// Batches is the number of embedding batches flushed successfully.
	Batches int `json:"batches"`
	// FailedBatches is the number of batches that could not be flushed.
	FailedBatches int `json:"failed_batches"`
}

// NewIndexStats returns empty stats ready for accumulation.
func NewIndexStats() *IndexStats {
	return &IndexStats{
		Dropped: make(map[string]int),
	}
}

// Drop records one dropped email under its reason.
func (s *IndexStats) Drop(reason mail.DropReason) {
	s.Dropped[string(reason)]++
}

// TotalDropped returns the number of dropped emails across all reasons.
func (s *IndexStats) TotalDropped() int {
	total := 0
	for _, n := range s.Dropped {
		total += n
	}
	return total
}

// CoverageStats describes the current state of the index across its three
// stores, for the health endpoint and the ingest CLI.
type CoverageStats struct {
	EmailsStored     int    `json:"emails_stored"`
	ChunksStored     int    `json:"chunks_stored"`
	PointsInIndex    int    `json:"points_in_index"`
	VectorSize       int    `json:"vector_size"`
	CollectionStatus string `json:"collection_status"`
}

// CoverageStats queries the stores for the current index state. A chunk
// count that disagrees with the point count indicates a partially failed
// flush and is worth surfacing, so both are reported.
func (p *Pipeline) CoverageStats(ctx context.Context) (*CoverageStats, error) {
	emails, err := p.emailRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count emails: %w", err)
	}

	chunks, err := p.chunkRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count chunks: %w", err)
	}

	info, err := p.vectorStore.GetCollectionInfo(ctx, p.collection)
	if err != nil {
		return nil, fmt.Errorf("failed to get collection info: %w", err)
	}

	return &CoverageStats{
		EmailsStored:     emails,
		ChunksStored:     chunks,
		PointsInIndex:    info.PointsCount,
		VectorSize:       info.VectorSize,
		CollectionStatus: info.Status,
	}, nil
}
