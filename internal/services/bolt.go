package services

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/modkit/chatstream/internal/models"
	bolt "go.etcd.io/bbolt"
)

// BoltDB implements the Store interface using a BoltDB backend for persistent
// transcript storage. Conversations live in one bucket; each conversation's
// messages live in their own bucket, keyed in insertion order.
type BoltDB struct {
	db *bolt.DB
}

// NewBoltDB creates a new BoltDB instance with the specified file path. The
// database file is created with 0600 permissions if it doesn't exist.
func NewBoltDB(path string) (BoltDB, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return BoltDB{}, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte("conversations"))
		return err
	})

	return BoltDB{db: db}, err
}

// Close releases the underlying database file.
func (b BoltDB) Close() error {
	return b.db.Close()
}

func messageBucketName(conversationID string) []byte {
	return []byte(fmt.Sprintf("conv-%s", conversationID))
}

// Conversations retrieves all stored conversations, most recent first.
func (b BoltDB) Conversations(context.Context) ([]models.Conversation, error) {
	var conversations []models.Conversation
	err := b.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte("conversations"))
		if bkt == nil {
			return nil
		}

		return bkt.ForEach(func(_, v []byte) error {
			var conversation models.Conversation
			if err := json.Unmarshal(v, &conversation); err != nil {
				return fmt.Errorf("failed to unmarshal conversation: %w", err)
			}
			conversations = append(conversations, conversation)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	slices.Reverse(conversations)
	return conversations, nil
}

// AddConversation stores a new conversation and creates its message bucket.
// The stored ID is the conversation's original ID prefixed with a sequence
// number, which keeps bucket iteration in creation order; the new ID is
// returned.
func (b BoltDB) AddConversation(_ context.Context, conversation models.Conversation) (string, error) {
	var newID string
	err := b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte("conversations"))
		if bkt == nil {
			return nil
		}

		idPrefix, err := bkt.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to get next sequence: %w", err)
		}
		newID = fmt.Sprintf("%d-%s", idPrefix, conversation.ID)
		conversation.ID = newID

		_, err = tx.CreateBucketIfNotExists(messageBucketName(conversation.ID))
		if err != nil {
			return fmt.Errorf("failed to create message bucket: %w", err)
		}

		v, err := json.Marshal(conversation)
		if err != nil {
			return fmt.Errorf("failed to marshal conversation: %w", err)
		}

		return bkt.Put([]byte(newID), v)
	})

	return newID, err
}

// UpdateConversation modifies an existing conversation record. If the
// conversation doesn't exist, the operation is silently ignored.
func (b BoltDB) UpdateConversation(_ context.Context, conversation models.Conversation) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte("conversations"))
		if bkt == nil {
			return nil
		}

		v := bkt.Get([]byte(conversation.ID))
		if v == nil {
			return nil
		}

		v, err := json.Marshal(conversation)
		if err != nil {
			return fmt.Errorf("failed to marshal conversation: %w", err)
		}

		return bkt.Put([]byte(conversation.ID), v)
	})
}

// Messages retrieves all messages of the specified conversation in their
// stored order.
func (b BoltDB) Messages(_ context.Context, conversationID string) ([]models.Message, error) {
	var messages []models.Message
	err := b.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(messageBucketName(conversationID))
		if bkt == nil {
			return nil
		}

		return bkt.ForEach(func(_, v []byte) error {
			var message models.Message
			if err := json.Unmarshal(v, &message); err != nil {
				return fmt.Errorf("failed to unmarshal message: %w", err)
			}
			messages = append(messages, message)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// AddMessage stores a new message in the conversation's bucket, returning the
// sequence-prefixed ID it was stored under.
func (b BoltDB) AddMessage(_ context.Context, conversationID string, message models.Message) (string, error) {
	var newID string
	err := b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(messageBucketName(conversationID))
		if bkt == nil {
			return nil
		}

		idPrefix, err := bkt.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to get next sequence: %w", err)
		}
		newID = fmt.Sprintf("%d-%s", idPrefix, message.ID)
		message.ID = newID

		v, err := json.Marshal(message)
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}

		return bkt.Put([]byte(newID), v)
	})

	return newID, err
}

// UpdateMessage modifies an existing message in the conversation's bucket. If
// the message doesn't exist, the operation is silently ignored.
func (b BoltDB) UpdateMessage(_ context.Context, conversationID string, message models.Message) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(messageBucketName(conversationID))
		if bkt == nil {
			return nil
		}

		v, err := json.Marshal(message)
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}

		return bkt.Put([]byte(message.ID), v)
	})
}
