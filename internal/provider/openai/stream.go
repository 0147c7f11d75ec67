package openai

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	providerdomain "github.com/freewayhq/freeway/internal/provider/domain"
)

// streamReader scans SSE lines off the upstream response body.
type streamReader struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	closed  bool
}

func newStreamReader(body io.ReadCloser) *streamReader {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
	return &streamReader{
		body:    body,
		scanner: scanner,
	}
}

// Recv returns the next chunk, or io.EOF on the [DONE] sentinel or when the
// upstream closes the stream.
func (s *streamReader) Recv() (*providerdomain.Chunk, error) {
	if s.closed {
		return nil, io.EOF
	}

	for {
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return nil, &providerdomain.UpstreamError{Cause: fmt.Errorf("read stream: %w", err)}
			}
			return nil, io.EOF
		}

		line := s.scanner.Text()
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "data: ") {
			// Comments and event lines carry nothing we forward.
			continue
		}

		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			return nil, io.EOF
		}

		var chunk providerdomain.Chunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return nil, &providerdomain.UpstreamError{Cause: fmt.Errorf("parse stream chunk: %w", err)}
		}
		return &chunk, nil
	}
}

func (s *streamReader) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}

var _ providerdomain.Stream = (*streamReader)(nil)
