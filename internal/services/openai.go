package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"slices"

	"github.com/modkit/chatstream/internal/models"
	"github.com/modkit/chatstream/internal/wire"
	goopenai "github.com/sashabaranov/go-openai"
)

// OpenAI provides an implementation of the LLM interface backed by OpenAI's
// chat completion API.
type OpenAI struct {
	model string

	params LLMParameters

	client *goopenai.Client

	logger *slog.Logger
}

// NewOpenAI creates a new OpenAI instance with the specified API key, model
// name, and sampling parameters.
func NewOpenAI(apiKey, model string, params LLMParameters, logger *slog.Logger) OpenAI {
	return OpenAI{
		model:  model,
		params: params,
		client: goopenai.NewClient(apiKey),
		logger: logger.With(slog.String("module", "openai")),
	}
}

func openAIMessages(systemPrompt string, messages []wire.Message) []goopenai.ChatCompletionMessage {
	msgs := make([]goopenai.ChatCompletionMessage, 0, len(messages)+1)
	for _, msg := range messages {
		if msg.Content == "" {
			continue
		}
		msgs = append(msgs, goopenai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}
	return slices.Insert(msgs, 0, goopenai.ChatCompletionMessage{
		Role:    goopenai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})
}

// Chat streams a completion for the given history, yielding text deltas in
// arrival order. A cancelled context ends the sequence without an error.
func (o OpenAI) Chat(ctx context.Context, systemPrompt string, messages []wire.Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		req := o.chatRequest(openAIMessages(systemPrompt, messages), true)

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		stream, err := o.client.CreateChatCompletionStream(ctx, req)
		if err != nil {
			yield("", fmt.Errorf("error sending request: %w", err))
			return
		}
		defer stream.Close()

		for {
			response, err := stream.Recv()
			if err != nil {
				if errors.Is(err, io.EOF) {
					return
				}
				if errors.Is(err, context.Canceled) {
					return
				}
				yield("", fmt.Errorf("error receiving response: %w", err))
				return
			}

			if len(response.Choices) == 0 {
				continue
			}

			delta := response.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			if !yield(delta, nil) {
				return
			}
		}
	}
}

// Complete returns the whole completion at once, with token usage metadata.
func (o OpenAI) Complete(ctx context.Context, systemPrompt string, messages []wire.Message) (string, models.Metadata, error) {
	req := o.chatRequest(openAIMessages(systemPrompt, messages), false)

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", models.Metadata{}, fmt.Errorf("error sending request: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", models.Metadata{}, errors.New("no choices found")
	}

	metadata := models.Metadata{
		Model:            resp.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}
	return resp.Choices[0].Message.Content, metadata, nil
}

// GenerateTitle produces a short conversation title for the given opening
// message.
func (o OpenAI) GenerateTitle(ctx context.Context, titlePrompt, message string) (string, error) {
	req := o.chatRequest([]goopenai.ChatCompletionMessage{
		{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: titlePrompt,
		},
		{
			Role:    goopenai.ChatMessageRoleUser,
			Content: message,
		},
	}, false)

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("error sending request: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no choices found")
	}

	return resp.Choices[0].Message.Content, nil
}

func (o OpenAI) chatRequest(messages []goopenai.ChatCompletionMessage, stream bool) goopenai.ChatCompletionRequest {
	req := goopenai.ChatCompletionRequest{
		Model:    o.model,
		Messages: messages,
		Stream:   stream,
	}

	if o.params.Temperature != nil {
		req.Temperature = *o.params.Temperature
	}
	if o.params.TopP != nil {
		req.TopP = *o.params.TopP
	}
	if o.params.Stop != nil {
		req.Stop = o.params.Stop
	}
	if o.params.PresencePenalty != nil {
		req.PresencePenalty = *o.params.PresencePenalty
	}
	if o.params.FrequencyPenalty != nil {
		req.FrequencyPenalty = *o.params.FrequencyPenalty
	}
	if o.params.Seed != nil {
		req.Seed = o.params.Seed
	}
	if o.params.LogitBias != nil {
		req.LogitBias = o.params.LogitBias
	}
	if o.params.MaxTokens != nil {
		req.MaxTokens = *o.params.MaxTokens
	}

	return req
}
