package retriever

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_llm.go -package=mocks mailrag/internal/retriever Embedder,Generator,FilterExtractor

import (
	"context"
	"fmt"
	"strings"

	"mailrag/internal/contextutil"
	"mailrag/internal/llm"
	"mailrag/internal/session"
	"mailrag/internal/vectorstore"
)

// Embedder generates embeddings for a batch of texts, preserving order.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator produces a chat completion for the given messages.
type Generator interface {
	ChatWithMessages(ctx context.Context, messages []llm.Message, params llm.ChatParams) (string, error)
}

// FilterExtractor derives structured metadata filters from a question.
type FilterExtractor interface {
	ExtractFilters(ctx context.Context, question string) (*llm.QueryFilter, error)
}

// Engine answers questions against the indexed mailbox.
type Engine interface {
	// Ask retrieves relevant chunks and generates an answer.
	Ask(ctx context.Context, req AskRequest) (AskResponse, error)

	// Retrieve runs only the search half of Ask: it returns the chunks
	// that would be used as answer context, without calling the chat LLM.
	Retrieve(ctx context.Context, question string) ([]RetrievedChunk, error)
}

const answerSystemPrompt = `You are a helpful assistant that answers questions about an email archive.

IMPORTANT INSTRUCTIONS:
1. Answer using the provided email context. If the context contains relevant information, cite it.
2. If no relevant emails are found, say so clearly.
3. When discussing email threads, describe the conversation flow.
4. Be specific about dates, people, and technical details when available.
5. Pay close attention to the DATE field of each email. When asked about a
   specific date, only use emails whose DATE matches, and list all of them.
6. Use the FROM and TO fields for sender and recipient questions, and the
   ATTACHMENTS field when asked about files or documents.`

type engine struct {
	embedder      Embedder
	generator     Generator
	extractor     FilterExtractor
	vectorStore   vectorstore.VectorStore
	collection    string
	sessions      *session.Manager
	kCandidates   int
	kFinal        int
	minFiltered   int
	historyWindow int
}

// NewEngine creates a retrieval engine. kCandidates is the unfiltered
// search width, kFinal the number of chunks kept for the prompt, and
// minFiltered the threshold below which metadata filtering is abandoned
// in favor of the unfiltered candidates.
func NewEngine(
	embedder Embedder,
	generator Generator,
	extractor FilterExtractor,
	vectorStore vectorstore.VectorStore,
	collection string,
	sessions *session.Manager,
	kCandidates, kFinal, minFiltered, historyWindow int,
) Engine {
	return &engine{
		embedder:      embedder,
		generator:     generator,
		extractor:     extractor,
		vectorStore:   vectorStore,
		collection:    collection,
		sessions:      sessions,
		kCandidates:   kCandidates,
		kFinal:        kFinal,
		minFiltered:   minFiltered,
		historyWindow: historyWindow,
	}
}

// Ask answers a question about the mailbox.
func (e *engine) Ask(ctx context.Context, req AskRequest) (AskResponse, error) {
	logger := contextutil.LoggerFromContext(ctx)

	question := strings.TrimSpace(req.Question)
	if question == "" {
		return AskResponse{}, &ValidationError{Field: "question", Msg: "must not be empty"}
	}

	k := e.kFinal
	if req.K > 0 && req.K < k {
		k = req.K
	}

	chunks, filtered, err := e.retrieve(ctx, question, k)
	if err != nil {
		return AskResponse{}, err
	}

	references := make([]Reference, 0, len(chunks))
	for _, chunk := range chunks {
		references = append(references, Reference{
			EntryID:    chunk.EntryID,
			MessageID:  chunk.MessageID,
			Subject:    chunk.Subject,
			Sender:     chunk.Sender,
			Date:       chunk.Date,
			ChunkIndex: chunk.ChunkIndex,
			Score:      chunk.Score,
		})
	}

	if len(chunks) == 0 {
		logger.InfoContext(ctx, "no chunks retrieved", "question_length", len(question))
		return AskResponse{
			Answer:     "I couldn't find any relevant emails to answer this question.",
			References: references,
			Filtered:   filtered,
		}, nil
	}

	messages := e.buildMessages(req.SessionID, question, chunks)

	answer, err := e.generator.ChatWithMessages(ctx, messages, llm.ChatParams{Temperature: 0})
	if err != nil {
		logger.ErrorContext(ctx, "failed to generate answer", "error", err)
		// Retrieval worked, so hand the caller the sources along with
		// the failure.
		return AskResponse{References: references, Filtered: filtered},
			fmt.Errorf("%w: %v", ErrAnswerGeneration, err)
	}

	if req.SessionID != "" {
		e.sessions.Add(req.SessionID, "user", question)
		e.sessions.Add(req.SessionID, "assistant", answer)
	}

	logger.InfoContext(ctx, "question answered",
		"chunks_used", len(chunks),
		"filtered", filtered,
		"answer_length", len(answer),
	)

	return AskResponse{
		Answer:     answer,
		References: references,
		Filtered:   filtered,
	}, nil
}

// Retrieve returns the final context chunks for a question.
func (e *engine) Retrieve(ctx context.Context, question string) ([]RetrievedChunk, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, &ValidationError{Field: "question", Msg: "must not be empty"}
	}
	chunks, _, err := e.retrieve(ctx, question, e.kFinal)
	return chunks, err
}

// retrieve runs the search pipeline: extract filters, embed the question,
// search the candidate pool, then narrow by metadata. Filtering happens
// in memory over the candidates rather than inside the vector store, and
// is abandoned when it leaves too few results, so a wrong filter guess
// degrades to plain semantic search instead of an empty answer.
func (e *engine) retrieve(ctx context.Context, question string, k int) ([]RetrievedChunk, bool, error) {
	logger := contextutil.LoggerFromContext(ctx)

	filter, err := e.extractor.ExtractFilters(ctx, question)
	if err != nil {
		// Filter extraction is best-effort; fall through unfiltered.
		logger.WarnContext(ctx, "filter extraction failed, searching unfiltered", "error", err)
		filter = nil
	}
	if !filter.IsEmpty() && len(filter.Keywords) > 0 {
		logger.DebugContext(ctx, "extracted keywords", "keywords", filter.Keywords)
	}

	embeddings, err := e.embedder.EmbedTexts(ctx, []string{question})
	if err != nil {
		logger.ErrorContext(ctx, "failed to embed question", "error", err)
		return nil, false, fmt.Errorf("%w: %v", ErrRetrievalUnavailable, err)
	}
	if len(embeddings) == 0 {
		return nil, false, fmt.Errorf("%w: no embedding returned for question", ErrRetrievalUnavailable)
	}

	candidates, err := e.vectorStore.Search(ctx, e.collection, embeddings[0], e.kCandidates, nil)
	if err != nil {
		logger.ErrorContext(ctx, "failed to search vector store", "error", err)
		return nil, false, fmt.Errorf("%w: %v", ErrRetrievalUnavailable, err)
	}

	chunks := make([]RetrievedChunk, 0, len(candidates))
	for _, result := range candidates {
		chunks = append(chunks, chunkFromResult(result))
	}

	selected := chunks
	filtered := false
	if !filter.IsEmpty() {
		narrowed := applyFilter(chunks, filter)
		if len(narrowed) >= e.minFiltered {
			selected = narrowed
			filtered = true
		} else {
			logger.InfoContext(ctx, "metadata filter too narrow, falling back",
				"matches", len(narrowed),
				"min_required", e.minFiltered,
			)
		}
	}

	if len(selected) > k {
		selected = selected[:k]
	}

	logger.InfoContext(ctx, "retrieval completed",
		"candidates", len(candidates),
		"selected", len(selected),
		"filtered", filtered,
	)
	return selected, filtered, nil
}

// applyFilter keeps chunks matching the extracted metadata filter. Dates
// match by substring so an exact day, a month or a bare year all narrow
// correctly against RFC3339 dates; senders match case-insensitively.
// Candidate order (similarity rank) is preserved.
func applyFilter(chunks []RetrievedChunk, filter *llm.QueryFilter) []RetrievedChunk {
	dateFilter := filter.DateFilter()
	senderFilter := strings.ToLower(filter.SenderName)

	matched := make([]RetrievedChunk, 0, len(chunks))
	for _, chunk := range chunks {
		if dateFilter != "" && !strings.Contains(chunk.Date, dateFilter) {
			continue
		}
		if senderFilter != "" && !strings.Contains(strings.ToLower(chunk.Sender), senderFilter) {
			continue
		}
		matched = append(matched, chunk)
	}
	return matched
}

// buildMessages assembles the chat prompt: system instructions, recent
// session history, then the question with the formatted email context.
func (e *engine) buildMessages(sessionID, question string, chunks []RetrievedChunk) []llm.Message {
	messages := []llm.Message{{Role: "system", Content: answerSystemPrompt}}

	if sessionID != "" {
		for _, turn := range e.sessions.History(sessionID, e.historyWindow) {
			messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
		}
	}

	messages = append(messages, llm.Message{
		Role:    "user",
		Content: fmt.Sprintf("Question: %s\n\nRelevant Emails:\n%s", question, formatChunks(chunks)),
	})
	return messages
}

// formatChunks renders retrieved chunks as labeled blocks. The explicit
// DATE/FROM/TO/ATTACHMENTS fields let the model answer metadata questions
// the body text alone cannot.
func formatChunks(chunks []RetrievedChunk) string {
	blocks := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		blocks = append(blocks, fmt.Sprintf(
			"========== EMAIL %d ==========\n"+
				"DATE: %s\n"+
				"FROM: %s\n"+
				"TO: %s\n"+
				"ATTACHMENTS: %s\n"+
				"CONTENT:\n%s\n"+
				"================================",
			i+1,
			orUnknown(chunk.Date),
			orUnknown(chunk.Sender),
			orUnknown(chunk.Recipients),
			orNone(chunk.Attachments),
			chunk.Text,
		))
	}
	return strings.Join(blocks, "\n\n")
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

func orNone(s string) string {
	if s == "" {
		return "None"
	}
	return s
}

// chunkFromResult maps a search result payload back to a typed chunk.
func chunkFromResult(result vectorstore.SearchResult) RetrievedChunk {
	chunk := RetrievedChunk{Score: result.Score}
	chunk.EntryID, _ = result.Meta["entry_id"].(string)
	chunk.MessageID, _ = result.Meta["message_id"].(string)
	chunk.Subject, _ = result.Meta["subject"].(string)
	chunk.Sender, _ = result.Meta["sender"].(string)
	chunk.Recipients, _ = result.Meta["recipients"].(string)
	chunk.Date, _ = result.Meta["date"].(string)
	chunk.Attachments, _ = result.Meta["attachments"].(string)
	chunk.Text, _ = result.Meta["text"].(string)
	if idx, ok := result.Meta["chunk_index"].(int64); ok {
		chunk.ChunkIndex = int(idx)
	} else if idx, ok := result.Meta["chunk_index"].(float64); ok {
		chunk.ChunkIndex = int(idx)
	}
	return chunk
}
