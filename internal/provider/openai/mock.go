package openai

import (
	"io"
	"strings"

	providerdomain "github.com/freewayhq/freeway/internal/provider/domain"
)

// mockCompletion builds a canned reply for mock_response requests. The reply
// is priced like a real one: token counts come from whitespace word counts.
func mockCompletion(req providerdomain.Request) *providerdomain.Response {
	usage := mockUsage(req)
	finish := "stop"
	return &providerdomain.Response{
		ID:      fallbackResponseID(),
		Object:  "chat.completion",
		Created: now(),
		Model:   req.Model,
		Choices: []providerdomain.Choice{{
			Index:        0,
			Message:      providerdomain.Message{Role: "assistant", Content: req.MockResponse},
			FinishReason: &finish,
		}},
		Usage: &usage,
	}
}

// mockStream replays the canned reply word by word, then a final frame with
// usage, mirroring stream_options.include_usage behavior.
type mockStream struct {
	id     string
	model  string
	frames []providerdomain.Chunk
	next   int
}

func newMockStream(req providerdomain.Request) *mockStream {
	id := fallbackResponseID()
	created := now()
	words := strings.Fields(req.MockResponse)

	frames := make([]providerdomain.Chunk, 0, len(words)+2)
	frames = append(frames, providerdomain.Chunk{
		ID:      id,
		Object:  "chat.completion.chunk",
		Created: created,
		Model:   req.Model,
		Choices: []providerdomain.StreamChoice{{Delta: providerdomain.Delta{Role: "assistant"}}},
	})
	for i, word := range words {
		content := word
		if i < len(words)-1 {
			content += " "
		}
		frames = append(frames, providerdomain.Chunk{
			ID:      id,
			Object:  "chat.completion.chunk",
			Created: created,
			Model:   req.Model,
			Choices: []providerdomain.StreamChoice{{Delta: providerdomain.Delta{Content: content}}},
		})
	}

	usage := mockUsage(req)
	finish := "stop"
	frames = append(frames, providerdomain.Chunk{
		ID:      id,
		Object:  "chat.completion.chunk",
		Created: created,
		Model:   req.Model,
		Choices: []providerdomain.StreamChoice{{FinishReason: &finish}},
		Usage:   &usage,
	})

	return &mockStream{id: id, model: req.Model, frames: frames}
}

func (s *mockStream) Recv() (*providerdomain.Chunk, error) {
	if s.next >= len(s.frames) {
		return nil, io.EOF
	}
	chunk := s.frames[s.next]
	s.next++
	return &chunk, nil
}

func (s *mockStream) Close() error {
	s.next = len(s.frames)
	return nil
}

func mockUsage(req providerdomain.Request) providerdomain.Usage {
	var prompt int64
	for _, msg := range req.Messages {
		prompt += int64(len(strings.Fields(msg.Content)))
	}
	completion := int64(len(strings.Fields(req.MockResponse)))
	return providerdomain.Usage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
	}
}

var _ providerdomain.Stream = (*mockStream)(nil)
