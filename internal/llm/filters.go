package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"mailrag/internal/contextutil"
)

// filterSystemPrompt constrains the extraction to a fixed JSON schema with
// nullable fields.
const filterSystemPrompt = `You are a query analyzer. Extract search filters from the user's question.
Return ONLY a valid JSON object with these fields (use null if not found):
{
  "date_exact": "YYYY-MM-DD" or null,
  "date_month": "YYYY-MM" or null,
  "date_year": "YYYY" or null,
  "sender_name": "name" or null,
  "keywords": ["keyword1", "keyword2"] or []
}

Examples:
Q: "What happened on January 31, 2021?" -> {"date_exact": "2021-01-31", ...}
Q: "Emails in July 2021" -> {"date_month": "2021-07", ...}
Q: "What did Alex Martin say?" -> {"sender_name": "Alex Martin", ...}
Q: "ANB reports" -> {"keywords": ["ANB", "report"], ...}`

// ExtractFilters asks the model for a structured QueryFilter for the
// question. It returns an error only for transport/parse failures; the
// caller is expected to treat any error as "no filter" (retrieval must
// never hard-fail on filter extraction).
func (c *Client) ExtractFilters(ctx context.Context, question string) (*QueryFilter, error) {
	logger := contextutil.LoggerFromContext(ctx)

	messages := []Message{
		{Role: "system", Content: filterSystemPrompt},
		{Role: "user", Content: fmt.Sprintf("Question: %s\n\nReturn JSON only:", question)},
	}

	reply, err := c.ChatWithMessages(ctx, messages, ChatParams{Temperature: 0})
	if err != nil {
		return nil, fmt.Errorf("filter extraction call failed: %w", err)
	}

	filter, err := parseFilterJSON(reply)
	if err != nil {
		logger.WarnContext(ctx, "unparseable filter extraction output", "error", err, "reply_length", len(reply))
		return nil, err
	}

	logger.DebugContext(ctx, "extracted query filters",
		"date", filter.DateFilter(),
		"sender", filter.SenderName,
		"keywords", filter.Keywords,
	)
	return filter, nil
}

// parseFilterJSON tolerates the usual model output noise: code fences and
// prose around the JSON object.
func parseFilterJSON(reply string) (*QueryFilter, error) {
	cleaned := strings.TrimSpace(reply)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON object in model output")
	}

	var filter QueryFilter
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &filter); err != nil {
		return nil, fmt.Errorf("failed to decode filter JSON: %w", err)
	}
	return &filter, nil
}
