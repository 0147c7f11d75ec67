package domain

import (
	"context"
	"fmt"
)

// Request is an OpenAI-compatible chat completion request. MockResponse never
// reaches the upstream; it short-circuits into a canned reply.
type Request struct {
	Model         string         `json:"model" binding:"required"`
	Messages      []Message      `json:"messages" binding:"required"`
	Stream        bool           `json:"stream,omitempty"`
	Temperature   *float64       `json:"temperature,omitempty"`
	TopP          *float64       `json:"top_p,omitempty"`
	MaxTokens     *int           `json:"max_tokens,omitempty"`
	N             *int           `json:"n,omitempty"`
	Stop          []string       `json:"stop,omitempty"`
	User          string         `json:"user,omitempty"`
	StreamOptions *StreamOptions `json:"stream_options,omitempty"`
	MockResponse  string         `json:"mock_response,omitempty"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type StreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason *string `json:"finish_reason"`
}

type Response struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

type Delta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

type StreamChoice struct {
	Index        int     `json:"index"`
	Delta        Delta   `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

// Chunk is one SSE frame of a streamed completion. Usage arrives on the final
// frame when stream_options.include_usage is set; intermediate frames may
// carry partial usage which later frames supersede.
type Chunk struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Created int64          `json:"created"`
	Model   string         `json:"model"`
	Choices []StreamChoice `json:"choices"`
	Usage   *Usage         `json:"usage,omitempty"`
}

// Stream yields chunks until io.EOF.
type Stream interface {
	Recv() (*Chunk, error)
	Close() error
}

// Client is the upstream completion collaborator.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
	StreamCompletion(ctx context.Context, req Request) (Stream, error)
}

// UpstreamError is a non-2xx reply or transport failure from the provider.
// It surfaces to callers as HTTP 502.
type UpstreamError struct {
	StatusCode int
	Message    string
	Cause      error
}

func (e *UpstreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("upstream completion failed: %v", e.Cause)
	}
	return fmt.Sprintf("upstream completion failed: status=%d %s", e.StatusCode, e.Message)
}

func (e *UpstreamError) Unwrap() error {
	return e.Cause
}
