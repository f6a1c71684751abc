// Package chunker splits normalized email bodies into bounded-length,
// sentence-aligned, overlapping segments suitable for embedding.
package chunker

import (
	"regexp"
	"strings"

	"mailrag/internal/mail"
)

const (
	// DefaultMaxChars is the maximum chunk length in characters.
	DefaultMaxChars = 1000
	// DefaultOverlapChars is the character tail carried into the next chunk.
	DefaultOverlapChars = 200
)

// Chunk is one bounded segment of an email body. Position indices are
// 0-based and follow emission order, so thread reconstruction can reassemble
// the body.
type Chunk struct {
	Text      string
	MessageID string
	Index     int
}

// sentenceRe matches a sentence up to and including its terminator run.
// Text after the final terminator is kept as a trailing sentence so no body
// content is lost.
var sentenceRe = regexp.MustCompile(`[^.!?]+[.!?]+`)

// SentenceChunker is a stateless pure splitter; the same input and settings
// always produce the same chunk sequence.
type SentenceChunker struct {
	maxChars     int
	overlapChars int
}

// New creates a SentenceChunker. Non-positive arguments fall back to the
// defaults; overlap is clamped below the chunk budget.
func New(maxChars, overlapChars int) *SentenceChunker {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	if overlapChars < 0 {
		overlapChars = DefaultOverlapChars
	}
	if overlapChars >= maxChars {
		overlapChars = maxChars / 2
	}
	return &SentenceChunker{maxChars: maxChars, overlapChars: overlapChars}
}

// Chunk splits the email body into sentence-aligned chunks. Sentences are
// accumulated greedily under the character budget; when a sentence does not
// fit, the buffer is emitted and the next buffer is seeded with the last
// overlapChars characters of the finished one. A single sentence longer
// than the budget is emitted whole, never split.
func (c *SentenceChunker) Chunk(email *mail.NormalizedEmail) []Chunk {
	sentences := SplitSentences(email.Body)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []Chunk
	emit := func(text string) {
		text = strings.TrimSpace(text)
		if text == "" {
			return
		}
		chunks = append(chunks, Chunk{
			Text:      text,
			MessageID: email.MessageID,
			Index:     len(chunks),
		})
	}

	current := ""
	for _, sentence := range sentences {
		if runeLen(current)+runeLen(sentence)+1 <= c.maxChars {
			if current == "" {
				current = sentence
			} else {
				current += " " + sentence
			}
			continue
		}

		emit(current)
		// Seed the next buffer with the character tail of the finished one.
		// The boundary is approximate (character, not word) on purpose.
		if c.overlapChars > 0 && runeLen(current) > c.overlapChars {
			current = runeTail(current, c.overlapChars) + " " + sentence
		} else {
			current = sentence
		}
	}
	emit(current)

	return chunks
}

// SplitSentences breaks text on sentence terminators (. ! ?), keeping any
// trailing non-terminated text as a final sentence.
func SplitSentences(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var sentences []string
	last := 0
	for _, loc := range sentenceRe.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[loc[0]:loc[1]]); s != "" {
			sentences = append(sentences, s)
		}
		last = loc[1]
	}
	if s := strings.TrimSpace(text[last:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func runeLen(s string) int {
	return len([]rune(s))
}

func runeTail(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
