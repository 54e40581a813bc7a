package models

import "time"

// Conversation is a persisted transcript container: an ordered sequence of
// messages identified and labeled for later retrieval.
type Conversation struct {
	ID        string
	Title     string
	CreatedAt time.Time
}
