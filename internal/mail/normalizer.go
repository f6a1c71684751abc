package mail

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DropReason classifies why a record was excluded during normalization.
type DropReason string

const (
	DropExcludedSubject  DropReason = "excluded_subject"
	DropEmptyBody        DropReason = "empty_body"
	DropDuplicate        DropReason = "duplicate_message_id"
	DropMissingMessageID DropReason = "missing_message_id"
)

// DropError signals that a record was dropped rather than transformed.
// Duplicates are a dedup policy outcome, not a failure.
type DropError struct {
	Reason    DropReason
	MessageID string
}

func (e *DropError) Error() string {
	return fmt.Sprintf("record dropped (%s): %s", e.Reason, e.MessageID)
}

// Run holds the state of one ingestion run. The seen-message-id set lives
// here instead of in package globals so concurrent or repeated runs stay
// independent.
type Run struct {
	excludePrefixes []string
	seen            map[string]struct{}
}

// NewRun creates the normalization context for a single batch ingestion run.
func NewRun(excludeSubjectPrefixes []string) *Run {
	return &Run{
		excludePrefixes: excludeSubjectPrefixes,
		seen:            make(map[string]struct{}),
	}
}

// Normalize cleans a raw record into a NormalizedEmail, or returns a
// *DropError describing why the record was excluded. First occurrence of a
// message id wins; later duplicates are dropped.
func (r *Run) Normalize(raw *RawEmail) (*NormalizedEmail, error) {
	subject := strings.TrimSpace(raw.Subject)
	for _, prefix := range r.excludePrefixes {
		if strings.HasPrefix(subject, prefix) {
			return nil, &DropError{Reason: DropExcludedSubject, MessageID: raw.MessageID}
		}
	}

	if raw.MessageID == "" {
		return nil, &DropError{Reason: DropMissingMessageID}
	}

	body := CleanBody(raw.Body)
	if body == "" {
		return nil, &DropError{Reason: DropEmptyBody, MessageID: raw.MessageID}
	}

	if _, dup := r.seen[raw.MessageID]; dup {
		return nil, &DropError{Reason: DropDuplicate, MessageID: raw.MessageID}
	}
	r.seen[raw.MessageID] = struct{}{}

	threadID := raw.ThreadID
	if threadID == "" {
		threadID = DeriveThreadID(raw.Subject)
	}

	return &NormalizedEmail{
		Subject:      raw.Subject,
		From:         raw.From,
		To:           raw.To,
		Cc:           raw.Cc,
		Date:         StandardizeDate(raw.Date),
		MessageID:    raw.MessageID,
		InReplyTo:    raw.InReplyTo,
		References:   raw.References,
		ThreadID:     threadID,
		Body:         body,
		Attachments:  raw.Attachments,
		NameEmailMap: raw.NameEmailMap,
	}, nil
}

var (
	// Reply-history markers. The earliest match by position wins, regardless
	// of which marker it is.
	quoteMarkers = []*regexp.Regexp{
		regexp.MustCompile(`(?mi)^\s*-{2,}\s*original message\s*-{2,}`),
		regexp.MustCompile(`(?mi)^(from|sent|to|subject):[ \t]`),
		regexp.MustCompile(`(?mi)^.*\bwrote:\s*$`),
		regexp.MustCompile(`(?m)^[ \t]*>`),
	}

	signatureCues = []string{"--", "Thanks", "Best regards", "Sent from", "Regards"}

	whitespaceRe = regexp.MustCompile(`\s+`)
)

// CleanBody runs the full body pipeline: HTML stripping, reply-history
// truncation, signature truncation, whitespace collapse.
func CleanBody(body string) string {
	text := htmlToText(body)
	text = truncateQuotedHistory(text)
	text = truncateSignature(text)
	return CollapseWhitespace(text)
}

// truncateQuotedHistory cuts the body at the earliest reply-history marker.
func truncateQuotedHistory(text string) string {
	cut := -1
	for _, re := range quoteMarkers {
		if loc := re.FindStringIndex(text); loc != nil {
			if cut == -1 || loc[0] < cut {
				cut = loc[0]
			}
		}
	}
	if cut == -1 {
		return text
	}
	return text[:cut]
}

// truncateSignature cuts the body before the first signature cue. A cue
// counts when it opens a line or follows a sentence boundary, so one-line
// bodies like "... report. Thanks, John" still lose their sign-off.
func truncateSignature(text string) string {
	cut := -1
	for _, cue := range signatureCues {
		if idx := findCue(text, cue); idx != -1 && (cut == -1 || idx < cut) {
			cut = idx
		}
	}
	if cut == -1 {
		return text
	}
	return text[:cut]
}

// findCue returns the earliest index where cue starts a line (ignoring
// leading spaces/tabs) or follows sentence-ending punctuation, or -1.
func findCue(text, cue string) int {
	from := 0
	for {
		idx := strings.Index(text[from:], cue)
		if idx == -1 {
			return -1
		}
		idx += from
		if cueBoundary(text, idx) {
			return idx
		}
		from = idx + 1
	}
}

func cueBoundary(text string, idx int) bool {
	// Line start, allowing leading indentation.
	i := idx
	for i > 0 && (text[i-1] == ' ' || text[i-1] == '\t') {
		i--
	}
	if i == 0 || text[i-1] == '\n' {
		return true
	}
	// Sentence boundary: terminator followed by whitespace.
	if idx >= 2 && (text[idx-1] == ' ' || text[idx-1] == '\t') {
		switch text[idx-2] {
		case '.', '!', '?':
			return true
		}
	}
	return false
}

// CollapseWhitespace folds any whitespace run (including newlines) into a
// single space and trims the result. Collapsing twice equals collapsing once.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// dateLayouts are tried in order when standardizing raw date strings.
var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	time.RFC3339Nano,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 -0700 (MST)",
	"2 Jan 2006 15:04:05 -0700",
	time.RFC822Z,
	time.RFC822,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// StandardizeDate converts any recognized date string to ISO-8601 UTC.
// Unparseable dates become "" and the record is kept; such records never
// match date filters.
func StandardizeDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC().Format(time.RFC3339)
		}
	}
	return ""
}

var replyPrefixes = []string{"re:", "fwd:", "fw:", "aw:", "wg:"}

// NormalizeSubject lowercases a subject and strips reply/forward prefixes,
// producing the threading key for emails without explicit thread linkage.
func NormalizeSubject(subject string) string {
	subject = strings.ToLower(strings.TrimSpace(subject))
	for {
		trimmed := false
		for _, prefix := range replyPrefixes {
			if strings.HasPrefix(subject, prefix) {
				subject = strings.TrimSpace(strings.TrimPrefix(subject, prefix))
				trimmed = true
				break
			}
		}
		if !trimmed {
			return subject
		}
	}
}

// DeriveThreadID derives a stable thread identifier from the normalized
// subject. Returns "" for empty subjects.
func DeriveThreadID(subject string) string {
	normalized := NormalizeSubject(subject)
	if normalized == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", hash[:16])
}
