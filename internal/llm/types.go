package llm

// Message represents a single message in a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatParams holds parameters for chat completion requests.
type ChatParams struct {
	// Model specifies the model to use. If empty, the client's default model is used.
	Model string

	// MaxTokens specifies the maximum number of tokens to generate.
	// If 0, no limit is applied.
	MaxTokens int

	// Temperature controls the randomness of the output.
	Temperature float32
}

// QueryFilter is the structured extraction from a natural-language question.
// Date fields are mutually exclusive: exact > month > year, first non-null
// wins. A zero-value QueryFilter means "no filtering".
type QueryFilter struct {
	DateExact  string   `json:"date_exact"`
	DateMonth  string   `json:"date_month"`
	DateYear   string   `json:"date_year"`
	SenderName string   `json:"sender_name"`
	Keywords   []string `json:"keywords"`
}

// IsEmpty reports whether no usable filter field was extracted.
func (f *QueryFilter) IsEmpty() bool {
	if f == nil {
		return true
	}
	return f.DateExact == "" && f.DateMonth == "" && f.DateYear == "" && f.SenderName == ""
}

// DateFilter returns the single effective date constraint, honoring the
// exact > month > year priority, or "" when no date field is set.
func (f *QueryFilter) DateFilter() string {
	if f == nil {
		return ""
	}
	switch {
	case f.DateExact != "":
		return f.DateExact
	case f.DateMonth != "":
		return f.DateMonth
	case f.DateYear != "":
		return f.DateYear
	}
	return ""
}
