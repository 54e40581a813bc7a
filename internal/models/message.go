package models

import "time"

// Message represents a single turn entry in a conversation. The content of an
// assistant message grows while its response is being streamed; every other
// field is fixed at creation time.
type Message struct {
	ID        string
	Role      Role
	Content   string
	Timestamp time.Time

	// IsStreaming is true only for the in-flight assistant message, while its
	// response is still being received. At most one message in a conversation
	// carries this flag at any time.
	IsStreaming bool

	// Metadata is attached at finalization, never while streaming.
	Metadata *Metadata
}

// Metadata carries optional structured info about a finished assistant turn.
type Metadata struct {
	Model            string `json:"model,omitempty"`
	PromptTokens     int    `json:"promptTokens,omitempty"`
	CompletionTokens int    `json:"completionTokens,omitempty"`
	Error            string `json:"error,omitempty"`
}

// Role represents the role of a message participant.
type Role string

const (
	// RoleUser represents a user message.
	RoleUser Role = "user"
	// RoleAssistant represents an assistant message. System prompts are passed
	// out-of-band and never stored as messages.
	RoleAssistant Role = "assistant"
)
