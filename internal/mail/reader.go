package mail

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"mailrag/internal/contextutil"
)

// maxLineBytes bounds a single JSONL record; large HTML bodies routinely
// exceed bufio's default token size.
const maxLineBytes = 8 * 1024 * 1024

// ReadResult carries the decoded records plus the count of malformed lines
// that were skipped.
type ReadResult struct {
	Emails    []*RawEmail
	Malformed int
}

// ReadJSONLFile decodes a line-delimited JSON mailbox export from disk.
func ReadJSONLFile(ctx context.Context, path string) (*ReadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open mailbox file %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	return ReadJSONL(ctx, f)
}

// ReadJSONL decodes raw email records, one JSON object per line. Malformed
// lines are logged and skipped; decoding continues with the next line.
func ReadJSONL(ctx context.Context, r io.Reader) (*ReadResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	result := &ReadResult{}
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var email RawEmail
		if err := json.Unmarshal(line, &email); err != nil {
			result.Malformed++
			logger.WarnContext(ctx, "skipping malformed record", "line", lineNo, "error", err)
			continue
		}
		result.Emails = append(result.Emails, &email)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read mailbox stream: %w", err)
	}
	return result, nil
}
