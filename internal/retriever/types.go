package retriever

// AskRequest represents a question against the indexed mailbox.
type AskRequest struct {
	// Question is the user's question to answer.
	Question string `json:"question"`
	// SessionID selects the conversation whose history is included in the
	// prompt. Empty means a fresh, stateless exchange.
	SessionID string `json:"session_id,omitempty"`
	// K optionally overrides the number of chunks kept for the prompt.
	K int `json:"k,omitempty"`
}

// Reference identifies an email chunk that was used in the answer.
type Reference struct {
	// EntryID is the stable index entry identifier.
	EntryID string `json:"entry_id"`
	// MessageID is the provider message ID of the source email.
	MessageID string `json:"message_id"`
	// Subject is the email subject at indexing time.
	Subject string `json:"subject"`
	// Sender is the email sender display address.
	Sender string `json:"sender"`
	// Date is the standardized email date, or "" when unknown.
	Date string `json:"date"`
	// ChunkIndex is the chunk position within the email body.
	ChunkIndex int `json:"chunk_index"`
	// Score is the vector similarity score.
	Score float32 `json:"score"`
}

// AskResponse represents the answer to a question.
type AskResponse struct {
	// Answer is the generated answer from the LLM.
	Answer string `json:"answer"`
	// References are the chunks the answer was grounded on.
	References []Reference `json:"references"`
	// Filtered reports whether metadata filters narrowed the result set.
	Filtered bool `json:"filtered"`
}

// RetrievedChunk is one candidate chunk with its snapshot metadata.
type RetrievedChunk struct {
	EntryID     string
	MessageID   string
	Subject     string
	Sender      string
	Recipients  string
	Date        string
	Attachments string
	ChunkIndex  int
	Text        string
	Score       float32
}
