package models

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a chat message. The set is closed: messages
// are either written by the patient or by the assistant.
type Role string

const (
	RoleHuman Role = "human"
	RoleAI    Role = "ai"
)

// ChatMessage is one entry in a user's conversation history. The id and role
// are fixed at creation; content is only mutated in memory while a response
// is being streamed, never after the message has been committed to the store.
type ChatMessage struct {
	MessageID string    `json:"message_id" bson:"message_id"`
	Role      Role      `json:"role" bson:"role"`
	Content   string    `json:"content" bson:"content"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// NewChatMessage creates a message with a fresh id and timestamp.
func NewChatMessage(role Role, content string) *ChatMessage {
	return &ChatMessage{
		MessageID: uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}
