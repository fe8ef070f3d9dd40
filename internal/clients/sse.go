package clients

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

// StreamParser handles parsing of Server-Sent Events (SSE) streams emitted by
// the language-model agent. Each data line carries a JSON object with a
// "content" field holding the next token chunk.
type StreamParser struct {
	scanner *bufio.Scanner
}

// NewStreamParser creates a new stream parser over an SSE response body.
func NewStreamParser(reader io.Reader) *StreamParser {
	return &StreamParser{
		scanner: bufio.NewScanner(reader),
	}
}

// StreamChunk represents a single chunk from the stream.
type StreamChunk struct {
	Content string
	Done    bool
}

type streamPayload struct {
	Content string `json:"content"`
	Done    bool   `json:"done"`
}

// Next reads the next chunk from the stream. Invalid JSON lines and non-data
// lines are skipped.
func (p *StreamParser) Next() (*StreamChunk, error) {
	for p.scanner.Scan() {
		line := p.scanner.Text()

		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")

		if data == "[DONE]" {
			return &StreamChunk{Done: true}, nil
		}

		var payload streamPayload
		if err := json.Unmarshal([]byte(data), &payload); err != nil {
			continue
		}

		if payload.Content == "" && !payload.Done {
			continue
		}
		return &StreamChunk{Content: payload.Content, Done: payload.Done}, nil
	}

	if err := p.scanner.Err(); err != nil {
		return nil, err
	}

	// End of stream
	return &StreamChunk{Done: true}, nil
}

// Collect reads the whole stream, invoking onChunk for each content chunk,
// and returns the accumulated text. onChunk may be nil.
func (p *StreamParser) Collect(onChunk func(string)) (string, error) {
	var sb strings.Builder
	for {
		chunk, err := p.Next()
		if err != nil {
			return sb.String(), err
		}

		if chunk.Content != "" {
			sb.WriteString(chunk.Content)
			if onChunk != nil {
				onChunk(chunk.Content)
			}
		}

		if chunk.Done {
			return sb.String(), nil
		}
	}
}
