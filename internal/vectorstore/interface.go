package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_vector_store.go -package=mocks mailrag/internal/vectorstore VectorStore

import "context"

// Point represents a vector point with metadata.
type Point struct {
	ID   string
	Vec  []float32
	Meta map[string]any
}

// SearchResult represents a search result from vector search.
type SearchResult struct {
	PointID string
	Score   float32
	Meta    map[string]any
}

// Filter narrows a search on the store side. A nil filter searches the
// whole collection.
type Filter struct {
	// DateMatch matches the indexed date field by full-text token match.
	DateMatch string
	// SenderMatch matches the indexed sender field by full-text token match.
	SenderMatch string
}

// IsEmpty reports whether the filter has no conditions.
func (f *Filter) IsEmpty() bool {
	return f == nil || (f.DateMatch == "" && f.SenderMatch == "")
}

// CollectionInfo contains information about a collection.
type CollectionInfo struct {
	VectorSize  int
	PointsCount int
	Status      string
}

// VectorStore defines the interface for vector storage operations.
type VectorStore interface {
	// Upsert inserts or updates points in the collection.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search performs a similarity search, optionally filtered.
	Search(ctx context.Context, collection string, query []float32, k int, filter *Filter) ([]SearchResult, error)

	// Delete removes points by their IDs.
	Delete(ctx context.Context, collection string, ids []string) error

	// EnsureCollection creates the collection if missing and validates
	// the vector size if it exists.
	EnsureCollection(ctx context.Context, collection string, vectorSize int) error

	// Recreate drops the collection if present and creates it empty.
	Recreate(ctx context.Context, collection string, vectorSize int) error

	// GetCollectionInfo returns collection metadata including point count.
	GetCollectionInfo(ctx context.Context, collection string) (*CollectionInfo, error)
}
