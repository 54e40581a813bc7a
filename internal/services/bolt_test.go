package services_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/modkit/chatstream/internal/models"
	"github.com/modkit/chatstream/internal/services"
)

func newTestStore(t *testing.T) services.BoltDB {
	t.Helper()

	store, err := services.NewBoltDB(filepath.Join(t.TempDir(), "store.db"))
	if err != nil {
		t.Fatalf("NewBoltDB() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestBoltDBConversations(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	firstID, err := store.AddConversation(ctx, models.Conversation{ID: "a", Title: "First"})
	if err != nil {
		t.Fatalf("AddConversation() error = %v", err)
	}
	if _, err := store.AddConversation(ctx, models.Conversation{ID: "b", Title: "Second"}); err != nil {
		t.Fatalf("AddConversation() error = %v", err)
	}

	conversations, err := store.Conversations(ctx)
	if err != nil {
		t.Fatalf("Conversations() error = %v", err)
	}
	if len(conversations) != 2 {
		t.Fatalf("Conversations() = %d entries, want 2", len(conversations))
	}
	// Most recent first.
	if conversations[0].Title != "Second" || conversations[1].Title != "First" {
		t.Errorf("Conversations() order = %q, %q", conversations[0].Title, conversations[1].Title)
	}

	if err := store.UpdateConversation(ctx, models.Conversation{ID: firstID, Title: "Renamed"}); err != nil {
		t.Fatalf("UpdateConversation() error = %v", err)
	}
	conversations, err = store.Conversations(ctx)
	if err != nil {
		t.Fatalf("Conversations() error = %v", err)
	}
	if conversations[1].Title != "Renamed" {
		t.Errorf("title after update = %q, want %q", conversations[1].Title, "Renamed")
	}

	// Updating a missing conversation is silently ignored.
	if err := store.UpdateConversation(ctx, models.Conversation{ID: "missing"}); err != nil {
		t.Errorf("UpdateConversation(missing) error = %v", err)
	}
}

func TestBoltDBMessages(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	convID, err := store.AddConversation(ctx, models.Conversation{ID: "a", Title: "Chat"})
	if err != nil {
		t.Fatalf("AddConversation() error = %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	userID, err := store.AddMessage(ctx, convID, models.Message{
		ID:        "u",
		Role:      models.RoleUser,
		Content:   "Hi",
		Timestamp: now,
	})
	if err != nil {
		t.Fatalf("AddMessage() error = %v", err)
	}
	if _, err := store.AddMessage(ctx, convID, models.Message{
		ID:      "a",
		Role:    models.RoleAssistant,
		Content: "Hello",
	}); err != nil {
		t.Fatalf("AddMessage() error = %v", err)
	}

	messages, err := store.Messages(ctx, convID)
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("Messages() = %d entries, want 2", len(messages))
	}
	if messages[0].Content != "Hi" || messages[1].Content != "Hello" {
		t.Errorf("Messages() order = %q, %q", messages[0].Content, messages[1].Content)
	}
	if !messages[0].Timestamp.Equal(now) {
		t.Errorf("timestamp = %v, want %v", messages[0].Timestamp, now)
	}

	updated := messages[0]
	updated.Content = "Hi there"
	if err := store.UpdateMessage(ctx, convID, updated); err != nil {
		t.Fatalf("UpdateMessage() error = %v", err)
	}
	messages, err = store.Messages(ctx, convID)
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if messages[0].ID != userID || messages[0].Content != "Hi there" {
		t.Errorf("message after update = %+v", messages[0])
	}

	// Unknown conversation yields no messages and no error.
	messages, err = store.Messages(ctx, "missing")
	if err != nil || len(messages) != 0 {
		t.Errorf("Messages(missing) = %v, %v", messages, err)
	}
}
