package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"diabuddy/internal/models"
)

func TestMessagesForUnknownUserReportsNoHistory(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Messages(context.Background(), "auth0|nobody")
	if !errors.Is(err, ErrNoHistory) {
		t.Fatalf("expected ErrNoHistory, got %v", err)
	}
}

func TestAppendPreservesCallAndPairOrder(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	userID := "auth0|alice"

	var want []string
	for i := 0; i < 3; i++ {
		human := models.NewChatMessage(models.RoleHuman, fmt.Sprintf("question %d", i))
		ai := models.NewChatMessage(models.RoleAI, fmt.Sprintf("answer %d", i))
		if _, err := store.Append(ctx, userID, []*models.ChatMessage{human, ai}); err != nil {
			t.Fatalf("append pair %d: %v", i, err)
		}
		want = append(want, human.MessageID, ai.MessageID)
	}

	got, err := store.Messages(ctx, userID)
	if err != nil {
		t.Fatalf("load messages: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(got))
	}
	for i, m := range got {
		if m.MessageID != want[i] {
			t.Fatalf("message %d out of order: want id %s got %s", i, want[i], m.MessageID)
		}
	}
	for i := 0; i < len(got); i += 2 {
		if got[i].Role != models.RoleHuman || got[i+1].Role != models.RoleAI {
			t.Fatalf("pair %d roles out of order: %s then %s", i/2, got[i].Role, got[i+1].Role)
		}
	}
}

func TestAppendCopiesMessages(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	msg := models.NewChatMessage(models.RoleHuman, "original")
	if _, err := store.Append(ctx, "auth0|bob", []*models.ChatMessage{msg}); err != nil {
		t.Fatalf("append: %v", err)
	}

	// Mutating the caller's message after commit must not change the store.
	msg.Content = "mutated"

	got, err := store.Messages(ctx, "auth0|bob")
	if err != nil {
		t.Fatalf("load messages: %v", err)
	}
	if got[0].Content != "original" {
		t.Fatalf("stored content changed after commit: %q", got[0].Content)
	}
}

func TestConcurrentAppendsLoseNothing(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	userID := "auth0|carol"

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pair := []*models.ChatMessage{
				models.NewChatMessage(models.RoleHuman, fmt.Sprintf("q%d", i)),
				models.NewChatMessage(models.RoleAI, fmt.Sprintf("a%d", i)),
			}
			if _, err := store.Append(ctx, userID, pair); err != nil {
				t.Errorf("append %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	got, err := store.Messages(ctx, userID)
	if err != nil {
		t.Fatalf("load messages: %v", err)
	}
	if len(got) != writers*2 {
		t.Fatalf("expected %d messages, got %d", writers*2, len(got))
	}
	// Pairs may interleave across writers but never within one append.
	for i := 0; i < len(got)-1; i++ {
		if got[i].Role == models.RoleHuman && got[i+1].Role != models.RoleAI {
			t.Fatalf("append split at index %d", i)
		}
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	userID := "auth0|dave"

	if _, err := store.Append(ctx, userID, []*models.ChatMessage{
		models.NewChatMessage(models.RoleHuman, "hello"),
	}); err != nil {
		t.Fatalf("append: %v", err)
	}

	if err := store.Delete(ctx, userID); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := store.Delete(ctx, userID); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if _, err := store.Messages(ctx, userID); !errors.Is(err, ErrNoHistory) {
		t.Fatalf("expected ErrNoHistory after delete, got %v", err)
	}
}
