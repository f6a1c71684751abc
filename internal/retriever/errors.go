package retriever

import (
	"errors"
	"fmt"
)

var (
	// ErrRetrievalUnavailable indicates that the question could not be
	// matched against the index at all (embedding or search failure).
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")

	// ErrAnswerGeneration indicates retrieval succeeded but the answer
	// could not be generated. The response still carries the references.
	ErrAnswerGeneration = errors.New("answer generation failed")
)

// ValidationError rejects a malformed request before any backend is touched.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}
