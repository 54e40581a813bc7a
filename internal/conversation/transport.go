package conversation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"

	"github.com/modkit/chatstream/internal/stream"
	"github.com/modkit/chatstream/internal/wire"
)

// Transport carries one chat completion request to the backend. Stream yields
// text deltas as they arrive; Complete returns the whole response at once.
type Transport interface {
	Stream(ctx context.Context, req wire.ChatRequest) iter.Seq2[string, error]
	Complete(ctx context.Context, req wire.ChatRequest) (wire.Completion, error)
}

// HTTPTransport implements Transport against a chat completion endpoint
// speaking the wire package's request and response formats.
type HTTPTransport struct {
	endpoint string

	client *http.Client

	logger *slog.Logger
}

// NewHTTPTransport creates an HTTPTransport targeting the given endpoint URL.
func NewHTTPTransport(endpoint string, logger *slog.Logger) *HTTPTransport {
	return &HTTPTransport{
		endpoint: endpoint,
		client:   &http.Client{},
		logger:   logger.With(slog.String("module", "transport")),
	}
}

// Stream posts the request in streaming mode and yields the response deltas in
// arrival order. Context cancellation stops the underlying request; the
// resulting read failure surfaces as an error wrapping context.Canceled.
func (t *HTTPTransport) Stream(ctx context.Context, req wire.ChatRequest) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		req.Stream = true
		resp, err := t.doRequest(ctx, req)
		if err != nil {
			yield("", fmt.Errorf("error sending request: %w", err))
			return
		}
		defer resp.Body.Close()

		for delta, err := range stream.Deltas(resp.Body) {
			if err != nil {
				yield("", err)
				return
			}

			t.logger.Debug("Received delta", slog.String("delta", delta))

			if !yield(delta, nil) {
				return
			}
		}
	}
}

// Complete posts the request in non-streaming mode and decodes the full
// completion response.
func (t *HTTPTransport) Complete(ctx context.Context, req wire.ChatRequest) (wire.Completion, error) {
	req.Stream = false
	resp, err := t.doRequest(ctx, req)
	if err != nil {
		return wire.Completion{}, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	var completion wire.Completion
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return wire.Completion{}, fmt.Errorf("error decoding response: %w", err)
	}

	return completion, nil
}

func (t *HTTPTransport) doRequest(ctx context.Context, req wire.ChatRequest) (*http.Response, error) {
	jsonBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	t.logger.Debug("Request Body", slog.String("body", string(jsonBody)))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json, text/event-stream")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(body))
	}

	return resp, nil
}

// isAborted reports whether an error or the request context indicates a
// user-triggered cancellation rather than a genuine failure.
func isAborted(ctx context.Context, err error) bool {
	return errors.Is(err, context.Canceled) || ctx.Err() != nil
}
