package conversation

import (
	"context"
	"sync"
)

// canceller binds one cancellation token to one in-flight request. Only one
// token is current at a time; beginning a new one invalidates the previous.
type canceller struct {
	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

// begin derives a cancelable context from parent and makes it the current
// token, cancelling any previous one first. The returned generation handle
// identifies this token to clear, so a finished turn can only release its own
// token.
func (c *canceller) begin(parent context.Context) (context.Context, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}

	ctx, cancel := context.WithCancel(parent)
	c.cancel = cancel
	c.gen++
	return ctx, c.gen
}

// cancelCurrent fires the current token. Calling it when no request is in
// flight is a no-op. Cancellation is best-effort: it stops local processing
// but does not guarantee the remote side stops generating.
func (c *canceller) cancelCurrent() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}
}

// clear releases the token identified by gen after cancellation or natural
// completion. If another turn has already registered a fresh token, the stale
// clear is a no-op, so a subsequent begin always starts fresh.
func (c *canceller) clear(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen != gen {
		return
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}
