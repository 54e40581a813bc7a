package stream_test

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/modkit/chatstream/internal/stream"
)

// chunkReader returns at most n bytes per Read call, to exercise chunk
// boundaries that split frame prefixes or payloads across reads.
type chunkReader struct {
	r io.Reader
	n int
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(p) > c.n {
		p = p[:c.n]
	}
	return c.r.Read(p)
}

// errReader yields its payload, then a read error.
type errReader struct {
	r   io.Reader
	err error
}

func (e *errReader) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	if errors.Is(err, io.EOF) {
		return n, e.err
	}
	return n, err
}

func collect(t *testing.T, r io.Reader) ([]string, error) {
	t.Helper()

	var deltas []string
	for delta, err := range stream.Deltas(r) {
		if err != nil {
			return deltas, err
		}
		deltas = append(deltas, delta)
	}
	return deltas, nil
}

func TestDeltas(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantDeltas []string
	}{
		{
			name: "empty stream",
			body: "",
		},
		{
			name: "single delta",
			body: "data: {\"content\":\"Hello\"}\n\n" +
				"data: [DONE]\n\n",
			wantDeltas: []string{"Hello"},
		},
		{
			name: "deltas in arrival order",
			body: "data: {\"content\":\"Hel\"}\n\n" +
				"data: {\"content\":\"lo, \"}\n\n" +
				"data: {\"content\":\"world\"}\n\n" +
				"data: [DONE]\n\n",
			wantDeltas: []string{"Hel", "lo, ", "world"},
		},
		{
			name: "malformed line is skipped",
			body: "data: {not json}\n\n" +
				"data: {\"content\":\"ok\"}\n\n" +
				"data: [DONE]\n\n",
			wantDeltas: []string{"ok"},
		},
		{
			name: "non-data lines are ignored",
			body: ": keep-alive\n\n" +
				"data: {\"content\":\"ok\"}\n\n" +
				"data: [DONE]\n\n",
			wantDeltas: []string{"ok"},
		},
		{
			name: "embedded newline in delta",
			body: "data: {\"content\":\"line one\\nline two\"}\n\n" +
				"data: [DONE]\n\n",
			wantDeltas: []string{"line one\nline two"},
		},
		{
			name: "empty content payload yields nothing",
			body: "data: {}\n\n" +
				"data: {\"content\":\"ok\"}\n\n" +
				"data: [DONE]\n\n",
			wantDeltas: []string{"ok"},
		},
		{
			name: "lines after sentinel are not interpreted",
			body: "data: {\"content\":\"ok\"}\n\n" +
				"data: [DONE]\n\n" +
				"data: {\"content\":\"ignored\"}\n\n",
			wantDeltas: []string{"ok"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deltas, err := collect(t, strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("Deltas() error = %v", err)
			}
			if len(deltas) != len(tt.wantDeltas) {
				t.Fatalf("Deltas() = %q, want %q", deltas, tt.wantDeltas)
			}
			for i := range deltas {
				if deltas[i] != tt.wantDeltas[i] {
					t.Errorf("delta[%d] = %q, want %q", i, deltas[i], tt.wantDeltas[i])
				}
			}
		})
	}
}

func TestDeltasSplitChunks(t *testing.T) {
	body := "data: {\"content\":\"héllo \"}\n\n" +
		"data: {\"content\":\"wörld\"}\n\n" +
		"data: [DONE]\n\n"

	// A 3-byte read size splits the "data: " prefix and the multi-byte runes
	// across reads; buffering must reassemble them.
	deltas, err := collect(t, &chunkReader{r: strings.NewReader(body), n: 3})
	if err != nil {
		t.Fatalf("Deltas() error = %v", err)
	}

	got := strings.Join(deltas, "")
	if got != "héllo wörld" {
		t.Errorf("concatenated deltas = %q, want %q", got, "héllo wörld")
	}
}

func TestDeltasPayloadError(t *testing.T) {
	body := "data: {\"content\":\"partial\"}\n\n" +
		"data: {\"error\":\"boom\"}\n\n" +
		"data: {\"content\":\"never seen\"}\n\n" +
		"data: [DONE]\n\n"

	deltas, err := collect(t, strings.NewReader(body))
	if err == nil {
		t.Fatal("Deltas() expected error, got nil")
	}

	var payloadErr *stream.PayloadError
	if !errors.As(err, &payloadErr) {
		t.Fatalf("Deltas() error = %v, want *stream.PayloadError", err)
	}
	if payloadErr.Message != "boom" {
		t.Errorf("PayloadError.Message = %q, want %q", payloadErr.Message, "boom")
	}

	if len(deltas) != 1 || deltas[0] != "partial" {
		t.Errorf("deltas before error = %q, want [\"partial\"]", deltas)
	}
}

func TestDeltasTransportError(t *testing.T) {
	readErr := errors.New("connection reset")
	body := "data: {\"content\":\"partial\"}\n\n"

	deltas, err := collect(t, &errReader{r: strings.NewReader(body), err: readErr})
	if err == nil {
		t.Fatal("Deltas() expected error, got nil")
	}
	if !errors.Is(err, readErr) {
		t.Errorf("Deltas() error = %v, want wrapped %v", err, readErr)
	}

	if len(deltas) != 1 || deltas[0] != "partial" {
		t.Errorf("deltas before error = %q, want [\"partial\"]", deltas)
	}
}

func TestDeltasEarlyStop(t *testing.T) {
	body := "data: {\"content\":\"one\"}\n\n" +
		"data: {\"content\":\"two\"}\n\n" +
		"data: [DONE]\n\n"

	var deltas []string
	for delta, err := range stream.Deltas(strings.NewReader(body)) {
		if err != nil {
			t.Fatalf("Deltas() error = %v", err)
		}
		deltas = append(deltas, delta)
		break
	}

	if len(deltas) != 1 || deltas[0] != "one" {
		t.Errorf("deltas = %q, want [\"one\"]", deltas)
	}
}
