// Package stream consumes streamed chat completion responses, turning a
// byte-oriented response body into an ordered sequence of text deltas.
package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"iter"

	"github.com/modkit/chatstream/internal/wire"
	"github.com/tmaxmax/go-sse"
)

// PayloadError is an application-level error carried inside the stream itself,
// as the Error field of a payload line. It is terminal: no further deltas are
// produced once one is seen.
type PayloadError struct {
	Message string
}

func (e *PayloadError) Error() string {
	return e.Message
}

// Deltas reads a streamed response body and yields its text deltas in arrival
// order. The body is framed as `data: <json>` lines where each payload is a
// wire.StreamPayload; framing and chunk-boundary buffering are handled by the
// underlying SSE reader, so a `data: ` prefix or a multi-byte rune split
// across two reads is reassembled before parsing.
//
// A payload equal to wire.Sentinel ends the sequence. Payloads that fail to
// parse are skipped; one bad line never aborts an otherwise good stream. A
// payload carrying a non-empty Error yields a *PayloadError and stops. A
// transport-level read failure yields a wrapped error and stops.
func Deltas(r io.Reader) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for ev, err := range sse.Read(r, nil) {
			if err != nil {
				yield("", fmt.Errorf("error reading stream: %w", err))
				return
			}

			if ev.Data == wire.Sentinel {
				return
			}

			var payload wire.StreamPayload
			if err := json.Unmarshal([]byte(ev.Data), &payload); err != nil {
				// Tolerant parsing: unrecognized or malformed lines are skipped.
				continue
			}

			if payload.Error != "" {
				yield("", &PayloadError{Message: payload.Error})
				return
			}

			if payload.Content == "" {
				continue
			}

			if !yield(payload.Content, nil) {
				return
			}
		}
	}
}
