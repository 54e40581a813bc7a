package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/modkit/chatstream/internal/wire"
	"github.com/tmaxmax/go-sse"
)

// HandleChat serves the chat completion endpoint. It accepts a wire.ChatRequest
// and responds either with a stream of `data: <json>` lines terminated by the
// sentinel (stream=true), or with a single wire.Completion object
// (stream=false).
//
// A provider failure in streaming mode is reported in-band as a payload line
// carrying an error field; in non-streaming mode it becomes a Completion with
// Success=false. Client disconnects cancel the provider request through the
// request context.
func (m Main) HandleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req wire.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		m.logger.Error("Failed to decode request", slog.String(errLoggerKey, err.Error()))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if len(req.Messages) == 0 {
		m.logger.Error("Messages are required")
		http.Error(w, "At least one message is required", http.StatusBadRequest)
		return
	}

	// Caller-supplied override, else the module default.
	systemPrompt := req.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = m.systemPrompt
	}

	if !req.Stream {
		m.handleCompletion(w, r, systemPrompt, req.Messages)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		m.logger.Error("Streaming not supported by response writer")
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for delta, err := range m.llm.Chat(r.Context(), systemPrompt, req.Messages) {
		if err != nil {
			m.logger.Error("Error from llm provider", slog.String(errLoggerKey, err.Error()))
			m.writePayload(w, flusher, wire.StreamPayload{Error: err.Error()})
			return
		}

		if r.Context().Err() != nil {
			// Client went away; the provider context is already cancelled.
			return
		}

		m.writePayload(w, flusher, wire.StreamPayload{Content: delta})
	}

	m.writeEvent(w, flusher, wire.Sentinel)
}

func (m Main) writePayload(w http.ResponseWriter, flusher http.Flusher, payload wire.StreamPayload) {
	data, err := json.Marshal(payload)
	if err != nil {
		m.logger.Error("Failed to marshal payload", slog.String(errLoggerKey, err.Error()))
		return
	}
	m.writeEvent(w, flusher, string(data))
}

func (m Main) writeEvent(w http.ResponseWriter, flusher http.Flusher, data string) {
	msg := sse.Message{}
	msg.AppendData(data)
	if _, err := msg.WriteTo(w); err != nil {
		m.logger.Error("Failed to write event", slog.String(errLoggerKey, err.Error()))
		return
	}
	flusher.Flush()
}

func (m Main) handleCompletion(w http.ResponseWriter, r *http.Request, systemPrompt string, messages []wire.Message) {
	w.Header().Set("Content-Type", "application/json")

	content, metadata, err := m.llm.Complete(r.Context(), systemPrompt, messages)
	if err != nil {
		m.logger.Error("Error from llm provider", slog.String(errLoggerKey, err.Error()))
		if err := json.NewEncoder(w).Encode(wire.Completion{
			Success: false,
			Error:   err.Error(),
		}); err != nil {
			m.logger.Error("Failed to encode response", slog.String(errLoggerKey, err.Error()))
		}
		return
	}

	if err := json.NewEncoder(w).Encode(wire.Completion{
		Success: true,
		Data: &wire.CompletionData{
			Content:  content,
			Metadata: metadata,
		},
	}); err != nil {
		m.logger.Error("Failed to encode response", slog.String(errLoggerKey, err.Error()))
	}
}
