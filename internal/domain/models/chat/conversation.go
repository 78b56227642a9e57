package chat

import (
	"time"
)

// Visibility values for a conversation.
const (
	VisibilityPrivate = "private"
	VisibilityPublic  = "public"
)

// Conversation is an ordered, owned collection of turns.
// The owner is immutable after creation; deletion is owner-only.
type Conversation struct {
	ID         string    `json:"id" db:"id"`
	UserID     string    `json:"user_id" db:"user_id"`
	Title      string    `json:"title" db:"title"`
	Visibility string    `json:"visibility" db:"visibility"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
