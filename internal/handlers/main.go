package handlers

import (
	"context"
	"iter"
	"log/slog"

	"github.com/modkit/chatstream/internal/models"
	"github.com/modkit/chatstream/internal/wire"
)

// LLM represents a language model capable of chat completion. Chat returns an
// iterator that yields response deltas and potential errors; Complete returns
// the whole response at once together with usage metadata.
type LLM interface {
	Chat(ctx context.Context, systemPrompt string, messages []wire.Message) iter.Seq2[string, error]
	Complete(ctx context.Context, systemPrompt string, messages []wire.Message) (string, models.Metadata, error)
}

// TitleGenerator produces a short title for a conversation's opening message.
type TitleGenerator interface {
	GenerateTitle(ctx context.Context, titlePrompt, message string) (string, error)
}

// Store defines the interface for transcript persistence. It provides methods
// for creating, reading, and updating conversations and their messages.
type Store interface {
	Conversations(ctx context.Context) ([]models.Conversation, error)
	AddConversation(ctx context.Context, conversation models.Conversation) (string, error)
	UpdateConversation(ctx context.Context, conversation models.Conversation) error

	Messages(ctx context.Context, conversationID string) ([]models.Message, error)
	AddMessage(ctx context.Context, conversationID string, message models.Message) (string, error)
	UpdateMessage(ctx context.Context, conversationID string, message models.Message) error
}

const errLoggerKey = "err"

// Main handles the HTTP surface of the chat backend: the chat completion
// endpoint consumed by the streaming client, and the transcript endpoints
// backed by the Store.
type Main struct {
	llm            LLM
	titleGenerator TitleGenerator
	store          Store

	systemPrompt string
	titlePrompt  string

	logger *slog.Logger
}

// NewMain creates a Main instance with the provided LLM, title generator, and
// store implementations. The system prompt is the module default, used when a
// request doesn't carry its own; the title prompt instructs the title
// generator.
func NewMain(llm LLM, titleGenerator TitleGenerator, store Store, systemPrompt, titlePrompt string, logger *slog.Logger) Main {
	return Main{
		llm:            llm,
		titleGenerator: titleGenerator,
		store:          store,
		systemPrompt:   systemPrompt,
		titlePrompt:    titlePrompt,
		logger:         logger.With(slog.String("module", "handlers")),
	}
}
