package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"diabuddy/internal/chain"
	"diabuddy/internal/models"
	"diabuddy/internal/storage"
	"diabuddy/internal/worker"
)

const thinkingPlaceholder = "Thinking..."

// ProfileSource is the slice of the identity layer the orchestrator needs.
type ProfileSource interface {
	ProfileFields(ctx context.Context, userID string) (*models.Profile, error)
}

// Service runs the streaming chat cycle: load profile, load history, stream
// the chain's answer to the client, then commit the question/answer pair in
// one append. Nothing is persisted unless the whole cycle succeeds.
type Service struct {
	store    storage.Store
	profiles ProfileSource
	streamer chain.Streamer
	gate     *worker.Gate
}

func NewService(store storage.Store, profiles ProfileSource, streamer chain.Streamer, gate *worker.Gate) *Service {
	return &Service{store: store, profiles: profiles, streamer: streamer, gate: gate}
}

// StreamQuery executes one chat cycle for the user. Errors before the first
// event are returned without anything having been written to the client, so
// the caller can still answer with a plain HTTP status. Once events flow,
// failures surface as a single terminal error event instead.
//
// Cycles for the same user run one at a time so their commits cannot
// interleave; different users stream concurrently.
func (s *Service) StreamQuery(ctx context.Context, userID, query string, emit EmitFunc) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return errors.New("query must not be empty")
	}
	if s.gate == nil {
		return s.runCycle(ctx, userID, query, emit)
	}
	return s.gate.Do(ctx, userID, func() error {
		return s.runCycle(ctx, userID, query, emit)
	})
}

func (s *Service) runCycle(ctx context.Context, userID, query string, emit EmitFunc) error {
	profile, err := s.profiles.ProfileFields(ctx, userID)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}

	history, err := s.historyFor(ctx, userID)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	userMsg := models.NewChatMessage(models.RoleHuman, query)
	aiMsg := models.NewChatMessage(models.RoleAI, thinkingPlaceholder)

	// The user message goes out before the chain is invoked, so the client
	// can render it while retrieval and model start-up are still running.
	if err := emit(userMessageEvent(userMsg)); err != nil {
		return fmt.Errorf("emit user message: %w", err)
	}
	if err := emit(responseStartEvent(aiMsg)); err != nil {
		return fmt.Errorf("emit response start: %w", err)
	}

	stream, err := s.streamer.Stream(ctx, chain.Request{
		Query:   query,
		History: history,
		Profile: profile,
	})
	if err != nil {
		s.emitError(emit, "Failed to generate a response. Please try again.")
		return fmt.Errorf("start chain: %w", err)
	}
	defer stream.Close()

	var content strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.emitError(emit, "Failed to generate a response. Please try again.")
			return fmt.Errorf("chain stream: %w", err)
		}
		content.WriteString(chunk)
		if err := emit(chunkEvent(aiMsg.MessageID, chunk)); err != nil {
			return fmt.Errorf("emit chunk: %w", err)
		}
	}

	aiMsg.Content = content.String()
	if _, err := s.store.Append(ctx, userID, []*models.ChatMessage{userMsg, aiMsg}); err != nil {
		s.emitError(emit, "Failed to save the conversation. Please try again.")
		return fmt.Errorf("commit messages: %w", err)
	}

	if err := emit(responseEndEvent()); err != nil {
		return fmt.Errorf("emit response end: %w", err)
	}
	return nil
}

// emitError delivers the terminal error event on a best-effort basis; the
// client may already be gone.
func (s *Service) emitError(emit EmitFunc, message string) {
	if err := emit(errorEvent(message)); err != nil {
		log.Printf("emit error event: %v", err)
	}
}

func (s *Service) historyFor(ctx context.Context, userID string) ([]*models.ChatMessage, error) {
	history, err := s.store.Messages(ctx, userID)
	if errors.Is(err, storage.ErrNoHistory) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return history, nil
}

// Messages returns the user's full history; a first-time user gets an empty
// slice, not an error.
func (s *Service) Messages(ctx context.Context, userID string) ([]*models.ChatMessage, error) {
	history, err := s.historyFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	if history == nil {
		return []*models.ChatMessage{}, nil
	}
	return history, nil
}

// DeleteMessages drops the user's history. Deleting an absent history is
// not an error.
func (s *Service) DeleteMessages(ctx context.Context, userID string) error {
	return s.store.Delete(ctx, userID)
}
