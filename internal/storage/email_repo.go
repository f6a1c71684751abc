package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_email_store.go -package=mocks mailrag/internal/storage EmailStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")
)

// EmailStore defines the interface for email metadata operations.
type EmailStore interface {
	// Insert inserts a single email record.
	Insert(ctx context.Context, email *EmailRecord) error
	// GetByMessageID gets an email by its message ID. Returns ErrNotFound if not found.
	GetByMessageID(ctx context.Context, messageID string) (*EmailRecord, error)
	// Count returns the number of indexed emails.
	Count(ctx context.Context) (int, error)
	// DeleteAll removes all email records and their chunks.
	DeleteAll(ctx context.Context) error
}

// EmailRepo provides methods for email metadata operations.
// It implements the EmailStore interface.
type EmailRepo struct {
	db *sql.DB
}

// NewEmailRepo creates a new EmailRepo.
func NewEmailRepo(db *sql.DB) *EmailRepo {
	return &EmailRepo{db: db}
}

// Insert inserts a single email record.
func (r *EmailRepo) Insert(ctx context.Context, email *EmailRecord) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO emails (message_id, thread_id, subject, sender, recipients, date, attachments, body) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		email.MessageID, email.ThreadID, email.Subject, email.Sender, email.Recipients, email.Date, email.Attachments, email.Body,
	)
	if err != nil {
		return fmt.Errorf("failed to insert email: %w", err)
	}
	return nil
}

// GetByMessageID gets an email by its message ID. Returns ErrNotFound if not found.
func (r *EmailRepo) GetByMessageID(ctx context.Context, messageID string) (*EmailRecord, error) {
	var email EmailRecord
	var indexedAtStr string

	err := r.db.QueryRowContext(ctx,
		"SELECT message_id, thread_id, subject, sender, recipients, date, attachments, body, indexed_at FROM emails WHERE message_id = ?",
		messageID,
	).Scan(&email.MessageID, &email.ThreadID, &email.Subject, &email.Sender, &email.Recipients, &email.Date, &email.Attachments, &email.Body, &indexedAtStr)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query email: %w", err)
	}

	email.IndexedAt, err = time.Parse("2006-01-02 15:04:05", indexedAtStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse indexed_at: %w", err)
	}

	return &email, nil
}

// Count returns the number of indexed emails.
func (r *EmailRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM emails").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count emails: %w", err)
	}
	return count, nil
}

// DeleteAll removes all email and chunk records. Used by the rebuild path.
// Chunks are deleted explicitly in the same transaction rather than via
// the foreign key cascade, so a rebuild never leaves orphaned chunk rows
// behind to collide with regenerated chunk IDs.
func (r *EmailRepo) DeleteAll(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks"); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM emails"); err != nil {
		return fmt.Errorf("failed to delete emails: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	return nil
}
