package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/freewayhq/freeway/internal/config"
	providerdomain "github.com/freewayhq/freeway/internal/provider/domain"
)

const maxErrorBodyBytes = 4 << 10

// Client speaks the OpenAI chat completions wire format.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *zap.Logger
}

func New(cfg config.Config, log *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.ProviderBaseURL, "/"),
		apiKey:  cfg.ProviderAPIKey,
		http: &http.Client{
			// No overall timeout; streamed completions are long-lived and
			// cancellation rides the request context.
			Timeout: 0,
		},
		log: log.Named("provider.openai"),
	}
}

func (c *Client) Complete(ctx context.Context, req providerdomain.Request) (*providerdomain.Response, error) {
	if req.MockResponse != "" {
		return mockCompletion(req), nil
	}

	req.Stream = false
	req.StreamOptions = nil

	resp, err := c.post(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out providerdomain.Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &providerdomain.UpstreamError{Cause: fmt.Errorf("decode response: %w", err)}
	}
	if out.ID == "" {
		out.ID = fallbackResponseID()
	}
	return &out, nil
}

func (c *Client) StreamCompletion(ctx context.Context, req providerdomain.Request) (providerdomain.Stream, error) {
	if req.MockResponse != "" {
		return newMockStream(req), nil
	}

	req.Stream = true
	// Without this the upstream never reports usage on streamed completions.
	req.StreamOptions = &providerdomain.StreamOptions{IncludeUsage: true}

	resp, err := c.post(ctx, req)
	if err != nil {
		return nil, err
	}

	return newStreamReader(resp.Body), nil
}

func (c *Client) post(ctx context.Context, req providerdomain.Request) (*http.Response, error) {
	req.MockResponse = ""

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &providerdomain.UpstreamError{Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		c.log.Warn("upstream completion failed",
			zap.Int("status", resp.StatusCode),
			zap.String("model", req.Model),
		)
		return nil, &providerdomain.UpstreamError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(snippet)),
		}
	}

	return resp, nil
}

func fallbackResponseID() string {
	return "chatcmpl-" + ulid.Make().String()
}

func now() int64 {
	return time.Now().Unix()
}
