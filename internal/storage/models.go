package storage

import "time"

// EmailRecord is the metadata snapshot of a normalized email, captured at
// indexing time. Recipients and attachment names are stored comma-joined
// because they are only ever rendered back as display strings.
type EmailRecord struct {
	MessageID   string // Provider message ID, unique per mailbox
	ThreadID    string
	Subject     string
	Sender      string
	Recipients  string // Comma-joined display addresses
	Date        string // RFC3339 UTC, or "" when the source date was unparseable
	Attachments string // Comma-joined attachment filenames
	Body        string // Cleaned plain-text body
	IndexedAt   time.Time
}

// ChunkRecord represents one indexed chunk of an email body.
type ChunkRecord struct {
	ID         string // UUID (same as the vector store point ID)
	EntryID    string // Human-readable index entry ID: "{sequence}_{message_id}"
	MessageID  string // Foreign key to emails.message_id
	ChunkIndex int    // Position within the email body, starts at 0
	Text       string
}
