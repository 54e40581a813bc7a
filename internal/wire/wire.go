// Package wire defines the request and response types shared by the chat
// completion endpoint and its clients.
//
// A streaming response is framed as newline-delimited `data: <json>` lines,
// where each payload is a StreamPayload, terminated by a line whose payload is
// exactly Sentinel. A non-streaming response is a single Completion object.
package wire

import "github.com/modkit/chatstream/internal/models"

// Sentinel is the fixed termination marker signaling the logical end of a
// streamed response, independent of transport-level stream closure.
const Sentinel = "[DONE]"

// ChatRequest is the body of a chat completion request.
type ChatRequest struct {
	Messages     []Message `json:"messages"`
	SystemPrompt string    `json:"systemPrompt,omitempty"`
	Stream       bool      `json:"stream"`
}

// Message is a single conversation turn as sent over the wire.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StreamPayload is the JSON payload of one `data:` line in a streamed
// response. Exactly one of Content or Error is expected to be set; a non-empty
// Error terminates the stream.
type StreamPayload struct {
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Completion is the body of a non-streaming chat completion response.
type Completion struct {
	Success bool            `json:"success"`
	Data    *CompletionData `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// CompletionData holds the assistant's full response for non-streaming mode.
type CompletionData struct {
	Content  string          `json:"content"`
	Metadata models.Metadata `json:"metadata"`
}
