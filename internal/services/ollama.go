package services

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"slices"

	"github.com/modkit/chatstream/internal/models"
	"github.com/modkit/chatstream/internal/wire"
	"github.com/ollama/ollama/api"
)

// Ollama provides an implementation of the LLM interface backed by a local or
// remote Ollama server.
type Ollama struct {
	host  string
	model string

	client *api.Client
}

// NewOllama creates a new Ollama instance for the given host URL and model
// name. The function panics if the host URL is invalid.
func NewOllama(host, model string) Ollama {
	u, err := url.Parse(host)
	if err != nil {
		panic(err)
	}

	return Ollama{
		host:   host,
		model:  model,
		client: api.NewClient(u, &http.Client{}),
	}
}

func ollamaMessages(systemPrompt string, messages []wire.Message) []api.Message {
	msgs := make([]api.Message, len(messages))
	for i, msg := range messages {
		msgs[i] = api.Message{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}
	return slices.Insert(msgs, 0, api.Message{
		Role:    "system",
		Content: systemPrompt,
	})
}

// Chat streams a completion for the given history, yielding text deltas in
// arrival order. A cancelled context ends the sequence without an error.
func (o Ollama) Chat(ctx context.Context, systemPrompt string, messages []wire.Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		t := true
		req := api.ChatRequest{
			Model:    o.model,
			Messages: ollamaMessages(systemPrompt, messages),
			Stream:   &t,
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		if err := o.client.Chat(ctx, &req, func(res api.ChatResponse) error {
			if res.Message.Content == "" {
				return nil
			}
			if !yield(res.Message.Content, nil) {
				cancel()
			}
			return nil
		}); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			yield("", fmt.Errorf("error sending request: %w", err))
		}
	}
}

// Complete returns the whole completion at once.
func (o Ollama) Complete(ctx context.Context, systemPrompt string, messages []wire.Message) (string, models.Metadata, error) {
	f := false
	req := api.ChatRequest{
		Model:    o.model,
		Messages: ollamaMessages(systemPrompt, messages),
		Stream:   &f,
	}

	var content string
	var metadata models.Metadata

	if err := o.client.Chat(ctx, &req, func(res api.ChatResponse) error {
		content = res.Message.Content
		metadata = models.Metadata{
			Model:            res.Model,
			PromptTokens:     res.PromptEvalCount,
			CompletionTokens: res.EvalCount,
		}
		return nil
	}); err != nil {
		return "", models.Metadata{}, fmt.Errorf("error sending request: %w", err)
	}

	return content, metadata, nil
}

// GenerateTitle produces a short conversation title for the given opening
// message.
func (o Ollama) GenerateTitle(ctx context.Context, titlePrompt, message string) (string, error) {
	f := false
	req := api.ChatRequest{
		Model: o.model,
		Messages: []api.Message{
			{
				Role:    "system",
				Content: titlePrompt,
			},
			{
				Role:    "user",
				Content: message,
			},
		},
		Stream: &f,
	}

	var title string

	if err := o.client.Chat(ctx, &req, func(res api.ChatResponse) error {
		title = res.Message.Content
		return nil
	}); err != nil {
		return "", fmt.Errorf("error sending request: %w", err)
	}

	return title, nil
}
