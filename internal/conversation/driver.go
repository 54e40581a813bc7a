// Package conversation drives a chat conversation end to end: it owns the
// ordered message list, issues completion requests through a Transport, and
// applies the streamed response to the in-flight assistant message.
package conversation

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/modkit/chatstream/internal/models"
	"github.com/modkit/chatstream/internal/stream"
	"github.com/modkit/chatstream/internal/wire"
)

// State is the driver's position in the per-turn lifecycle.
type State int

const (
	// StateIdle means no request is in flight.
	StateIdle State = iota
	// StateSending means a request has been issued but no delta has arrived yet.
	StateSending
	// StateStreaming means response deltas are being applied.
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	}
	return "unknown"
}

// ErrorResponseContent is the transcript text shown for an assistant turn that
// failed before producing any output.
const ErrorResponseContent = "Sorry, something went wrong while generating a response. Please try again."

// Driver coordinates one conversation: it validates and appends user messages,
// runs the network request, applies deltas to the in-flight assistant message,
// and finalizes or discards it. A Driver instance owns its message list
// exclusively; observers read snapshots through Messages.
type Driver struct {
	transport    Transport
	systemPrompt string
	streaming    bool

	onUpdate   func()
	onComplete func(models.Message)

	canceller canceller

	mu             sync.Mutex
	state          State
	conversationID string
	messages       []models.Message
	lastErr        string

	logger *slog.Logger
}

// Option configures a Driver.
type Option func(*Driver)

// WithSystemPrompt overrides the system prompt sent with every request.
func WithSystemPrompt(prompt string) Option {
	return func(d *Driver) {
		d.systemPrompt = prompt
	}
}

// WithStreaming toggles between streamed and single-shot responses. Streaming
// is the default.
func WithStreaming(enabled bool) Option {
	return func(d *Driver) {
		d.streaming = enabled
	}
}

// WithOnUpdate registers a callback invoked after every change to the message
// list, so a UI layer can re-render incrementally.
func WithOnUpdate(fn func()) Option {
	return func(d *Driver) {
		d.onUpdate = fn
	}
}

// WithOnComplete registers a callback invoked with the finalized assistant
// message after a successful turn.
func WithOnComplete(fn func(models.Message)) Option {
	return func(d *Driver) {
		d.onComplete = fn
	}
}

// NewDriver creates a Driver sending requests through the given transport.
func NewDriver(transport Transport, logger *slog.Logger, opts ...Option) *Driver {
	d := &Driver{
		transport:      transport,
		streaming:      true,
		conversationID: uuid.New().String(),
		logger:         logger.With(slog.String("module", "conversation")),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SendMessage turns user input into a complete assistant turn. Input that is
// empty after trimming is silently ignored, as is a call made while a prior
// send is still in flight. The call blocks until the turn finishes; run it in
// a goroutine to keep observing the conversation while it streams.
func (d *Driver) SendMessage(ctx context.Context, content string) {
	content = strings.TrimSpace(content)
	if content == "" {
		return
	}

	d.mu.Lock()
	if d.state != StateIdle {
		d.mu.Unlock()
		return
	}

	d.messages = append(d.messages, models.Message{
		ID:        uuid.New().String(),
		Role:      models.RoleUser,
		Content:   content,
		Timestamp: time.Now(),
	})
	placeholderID := d.beginTurnLocked()
	history := d.historyLocked()
	d.mu.Unlock()
	d.notifyUpdate()

	d.runTurn(ctx, placeholderID, history)
}

// RegenerateLastResponse replays the most recent user message: everything
// after it is dropped, the user message itself is preserved byte-for-byte, and
// a fresh assistant turn is generated. A conversation without user messages,
// or one with a send in flight, is left untouched.
func (d *Driver) RegenerateLastResponse(ctx context.Context) {
	d.mu.Lock()
	if d.state != StateIdle {
		d.mu.Unlock()
		return
	}

	idx := -1
	for i := len(d.messages) - 1; i >= 0; i-- {
		if d.messages[i].Role == models.RoleUser {
			idx = i
			break
		}
	}
	if idx == -1 {
		d.mu.Unlock()
		return
	}

	d.messages = d.messages[:idx+1]
	placeholderID := d.beginTurnLocked()
	history := d.historyLocked()
	d.mu.Unlock()
	d.notifyUpdate()

	d.runTurn(ctx, placeholderID, history)
}

// StopGeneration aborts the outstanding request, if any. The partial assistant
// message is discarded as if the turn never happened.
func (d *Driver) StopGeneration() {
	d.canceller.cancelCurrent()
}

// ClearConversation aborts any in-flight request, empties the message list,
// and starts a fresh conversation identifier.
func (d *Driver) ClearConversation() {
	d.canceller.cancelCurrent()

	d.mu.Lock()
	d.messages = nil
	d.state = StateIdle
	d.lastErr = ""
	d.conversationID = uuid.New().String()
	d.mu.Unlock()
	d.notifyUpdate()
}

// Messages returns a snapshot of the conversation in display order.
func (d *Driver) Messages() []models.Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.messages)
}

// State returns the driver's current lifecycle state.
func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// IsLoading reports whether a send is in flight, streaming or not.
func (d *Driver) IsLoading() bool {
	return d.State() != StateIdle
}

// IsStreaming reports whether response deltas are currently being applied.
func (d *Driver) IsStreaming() bool {
	return d.State() == StateStreaming
}

// Err returns the last turn failure, suitable for a dismissible banner. Empty
// when the last turn succeeded or was aborted.
func (d *Driver) Err() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastErr
}

// ClearError dismisses the banner error value.
func (d *Driver) ClearError() {
	d.mu.Lock()
	d.lastErr = ""
	d.mu.Unlock()
}

// ConversationID identifies the current conversation; it changes on clear.
func (d *Driver) ConversationID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conversationID
}

// beginTurnLocked appends the placeholder assistant message and moves the
// driver out of idle. Caller holds d.mu.
func (d *Driver) beginTurnLocked() string {
	placeholder := models.Message{
		ID:          uuid.New().String(),
		Role:        models.RoleAssistant,
		Timestamp:   time.Now(),
		IsStreaming: true,
	}
	d.messages = append(d.messages, placeholder)
	d.state = StateSending
	d.lastErr = ""
	return placeholder.ID
}

// historyLocked snapshots the conversation for the outgoing request, excluding
// the in-flight placeholder. Caller holds d.mu.
func (d *Driver) historyLocked() []wire.Message {
	history := make([]wire.Message, 0, len(d.messages))
	for _, msg := range d.messages {
		if msg.IsStreaming {
			continue
		}
		history = append(history, wire.Message{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}
	return history
}

func (d *Driver) runTurn(ctx context.Context, placeholderID string, history []wire.Message) {
	ctx, token := d.canceller.begin(ctx)
	defer d.canceller.clear(token)

	req := wire.ChatRequest{
		Messages:     history,
		SystemPrompt: d.systemPrompt,
	}

	if !d.streaming {
		d.runCompletion(ctx, placeholderID, req)
		return
	}

	req.Stream = true
	for delta, err := range d.transport.Stream(ctx, req) {
		if err != nil {
			if isAborted(ctx, err) {
				d.abortTurn(placeholderID)
				return
			}
			d.failTurn(placeholderID, err)
			return
		}

		// Cancellation can race with an in-flight read; check the token after
		// every delta, not just at the start.
		if ctx.Err() != nil {
			d.abortTurn(placeholderID)
			return
		}

		d.applyDelta(placeholderID, delta)
	}

	if ctx.Err() != nil {
		d.abortTurn(placeholderID)
		return
	}
	d.finishTurn(placeholderID, nil)
}

func (d *Driver) runCompletion(ctx context.Context, placeholderID string, req wire.ChatRequest) {
	completion, err := d.transport.Complete(ctx, req)
	if err != nil {
		if isAborted(ctx, err) {
			d.abortTurn(placeholderID)
			return
		}
		d.failTurn(placeholderID, err)
		return
	}

	if !completion.Success || completion.Data == nil {
		errMsg := completion.Error
		if errMsg == "" {
			errMsg = "empty completion response"
		}
		d.failTurn(placeholderID, &stream.PayloadError{Message: errMsg})
		return
	}

	if ctx.Err() != nil {
		d.abortTurn(placeholderID)
		return
	}

	d.mu.Lock()
	if idx := d.indexLocked(placeholderID); idx != -1 {
		d.messages[idx].Content = completion.Data.Content
	}
	d.mu.Unlock()

	metadata := completion.Data.Metadata
	d.finishTurn(placeholderID, &metadata)
}

// applyDelta extends the placeholder's content; content is never overwritten,
// only extended. The first delta moves the driver from sending to streaming.
func (d *Driver) applyDelta(placeholderID, delta string) {
	d.mu.Lock()
	idx := d.indexLocked(placeholderID)
	if idx == -1 {
		d.mu.Unlock()
		return
	}
	d.messages[idx].Content += delta
	if d.state == StateSending {
		d.state = StateStreaming
	}
	d.mu.Unlock()
	d.notifyUpdate()
}

// finishTurn finalizes the placeholder after a normal completion.
func (d *Driver) finishTurn(placeholderID string, metadata *models.Metadata) {
	d.mu.Lock()
	idx := d.indexLocked(placeholderID)
	if idx == -1 {
		// The conversation was cleared mid-turn; nothing left to finalize.
		d.mu.Unlock()
		return
	}
	d.messages[idx].IsStreaming = false
	if metadata != nil {
		d.messages[idx].Metadata = metadata
	}
	final := d.messages[idx]
	d.state = StateIdle
	d.mu.Unlock()
	d.notifyUpdate()

	if d.onComplete != nil {
		d.onComplete(final)
	}
}

// failTurn finalizes the placeholder after a non-abort failure. Partial
// content already received is kept; an empty placeholder gets a fixed
// user-facing error string instead.
func (d *Driver) failTurn(placeholderID string, err error) {
	errMsg := err.Error()
	var payloadErr *stream.PayloadError
	if errors.As(err, &payloadErr) {
		errMsg = payloadErr.Message
	}

	d.logger.Error("Turn failed", slog.String("err", err.Error()))

	d.mu.Lock()
	idx := d.indexLocked(placeholderID)
	if idx == -1 {
		d.mu.Unlock()
		return
	}
	if d.messages[idx].Content == "" {
		d.messages[idx].Content = ErrorResponseContent
	}
	d.messages[idx].IsStreaming = false
	d.messages[idx].Metadata = &models.Metadata{Error: errMsg}
	d.lastErr = errMsg
	d.state = StateIdle
	d.mu.Unlock()
	d.notifyUpdate()
}

// abortTurn removes the placeholder entirely; the user never sees a partial
// aborted answer, and no error is surfaced.
func (d *Driver) abortTurn(placeholderID string) {
	d.mu.Lock()
	idx := d.indexLocked(placeholderID)
	if idx == -1 {
		d.mu.Unlock()
		return
	}
	d.messages = slices.Delete(d.messages, idx, idx+1)
	d.state = StateIdle
	d.mu.Unlock()
	d.notifyUpdate()
}

// indexLocked finds the placeholder by ID. Caller holds d.mu. Returns -1 if
// the message is gone, which happens when the conversation was cleared while
// the turn was still in flight.
func (d *Driver) indexLocked(id string) int {
	return slices.IndexFunc(d.messages, func(m models.Message) bool { return m.ID == id })
}

func (d *Driver) notifyUpdate() {
	if d.onUpdate != nil {
		d.onUpdate()
	}
}
