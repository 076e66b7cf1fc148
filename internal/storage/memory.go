package storage

import (
	"context"
	"errors"
	"sync"

	"diabuddy/internal/models"
)

// MemoryStore is an in-process Store with the same append/absent semantics
// as the document store. The whole append runs under one lock, so the
// atomicity contract holds here too.
type MemoryStore struct {
	mu       sync.RWMutex
	messages map[string][]*models.ChatMessage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{messages: make(map[string][]*models.ChatMessage)}
}

func (s *MemoryStore) Append(ctx context.Context, userID string, msgs []*models.ChatMessage) ([]*models.ChatMessage, error) {
	if userID == "" {
		return nil, errors.New("user id required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return msgs, nil
	}

	copied := make([]*models.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		c := *m
		copied = append(copied, &c)
	}

	s.mu.Lock()
	s.messages[userID] = append(s.messages[userID], copied...)
	s.mu.Unlock()
	return msgs, nil
}

func (s *MemoryStore) Messages(ctx context.Context, userID string) ([]*models.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.messages[userID]
	if !ok {
		return nil, ErrNoHistory
	}
	out := make([]*models.ChatMessage, 0, len(history))
	for _, m := range history {
		c := *m
		out = append(out, &c)
	}
	return out, nil
}

func (s *MemoryStore) Delete(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.messages, userID)
	s.mu.Unlock()
	return nil
}
