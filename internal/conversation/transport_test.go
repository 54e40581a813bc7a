package conversation_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/modkit/chatstream/internal/conversation"
	"github.com/modkit/chatstream/internal/wire"
)

func sseHandler(t *testing.T, payloads []wire.StreamPayload) http.HandlerFunc {
	t.Helper()

	return func(w http.ResponseWriter, r *http.Request) {
		var req wire.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if !req.Stream {
			http.Error(w, "expected streaming request", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, payload := range payloads {
			data, _ := json.Marshal(payload)
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
		fmt.Fprintf(w, "data: %s\n\n", wire.Sentinel)
	}
}

func TestHTTPTransportStream(t *testing.T) {
	srv := httptest.NewServer(sseHandler(t, []wire.StreamPayload{
		{Content: "Hel"},
		{Content: "lo"},
	}))
	defer srv.Close()

	transport := conversation.NewHTTPTransport(srv.URL, discardLogger())

	var got strings.Builder
	for delta, err := range transport.Stream(context.Background(), wire.ChatRequest{
		Messages: []wire.Message{{Role: "user", Content: "Hi"}},
	}) {
		if err != nil {
			t.Fatalf("Stream() error = %v", err)
		}
		got.WriteString(delta)
	}

	if got.String() != "Hello" {
		t.Errorf("streamed content = %q, want %q", got.String(), "Hello")
	}
}

func TestHTTPTransportStreamServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no capacity", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	transport := conversation.NewHTTPTransport(srv.URL, discardLogger())

	var streamErr error
	for _, err := range transport.Stream(context.Background(), wire.ChatRequest{}) {
		if err != nil {
			streamErr = err
			break
		}
	}

	if streamErr == nil {
		t.Fatal("Stream() expected error for non-200 response")
	}
	if !strings.Contains(streamErr.Error(), "503") {
		t.Errorf("Stream() error = %v, want status code included", streamErr)
	}
}

func TestHTTPTransportComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req wire.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Stream {
			http.Error(w, "expected non-streaming request", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(wire.Completion{
			Success: true,
			Data:    &wire.CompletionData{Content: "Hello"},
		})
	}))
	defer srv.Close()

	transport := conversation.NewHTTPTransport(srv.URL, discardLogger())

	completion, err := transport.Complete(context.Background(), wire.ChatRequest{})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if !completion.Success || completion.Data == nil || completion.Data.Content != "Hello" {
		t.Errorf("Complete() = %+v", completion)
	}
}

// TestDriverOverHTTP runs the driver against a real HTTP server to cover the
// full path: request marshaling, SSE framing, delta assembly, finalization.
func TestDriverOverHTTP(t *testing.T) {
	srv := httptest.NewServer(sseHandler(t, []wire.StreamPayload{
		{Content: "str"},
		{Content: "eamed"},
	}))
	defer srv.Close()

	transport := conversation.NewHTTPTransport(srv.URL, discardLogger())
	driver := conversation.NewDriver(transport, discardLogger())

	driver.SendMessage(context.Background(), "Hi")

	msgs := driver.Messages()
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}
	if msgs[1].Content != "streamed" {
		t.Errorf("assistant content = %q, want %q", msgs[1].Content, "streamed")
	}
	if driver.State() != conversation.StateIdle {
		t.Errorf("state = %v, want idle", driver.State())
	}
}
