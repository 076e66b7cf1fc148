package storage

import (
	"context"
	"errors"
	"fmt"

	"diabuddy/internal/config"
	"diabuddy/internal/models"
)

// Common errors for message store operations.
var (
	// ErrNoHistory reports that no history record exists for the user. It is
	// distinct from an existing record with zero messages: a first-time user
	// has no record at all, and callers decide whether that matters.
	ErrNoHistory = errors.New("no chat history for user")

	// ErrNotAcknowledged reports that the underlying write was not
	// acknowledged by the store; nothing from the attempted append may be
	// assumed persisted.
	ErrNotAcknowledged = errors.New("write not acknowledged")
)

// Store is a durable, per-user, append-only message log.
//
// Append must be atomic with respect to concurrent appends for the same
// user: either every message of the call becomes visible, in order, after
// any previously stored messages, or none does. Implementations back this
// with a single upsert-append primitive, never a read-check-write sequence.
type Store interface {
	// Append upserts the user's history record and appends the messages in
	// the given order. Returns the appended messages.
	Append(ctx context.Context, userID string, msgs []*models.ChatMessage) ([]*models.ChatMessage, error)

	// Messages returns the user's committed history, oldest first, or
	// ErrNoHistory when no record exists.
	Messages(ctx context.Context, userID string) ([]*models.ChatMessage, error)

	// Delete removes the user's history. Deleting an absent history is not
	// an error.
	Delete(ctx context.Context, userID string) error
}

// Open constructs a Store from configuration. A configured mongo URI selects
// the document store; an empty URI falls back to the in-process store, which
// is only suitable for tests and single-node development.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	if cfg.Mongo.URI == "" {
		return NewMemoryStore(), nil
	}
	store, err := OpenMongo(ctx, cfg.Mongo)
	if err != nil {
		return nil, fmt.Errorf("open mongo store: %w", err)
	}
	return store, nil
}
