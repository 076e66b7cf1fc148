package chain

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"

	"diabuddy/internal/config"
	"diabuddy/internal/models"
)

// Request carries everything a generation pipeline needs for one turn.
type Request struct {
	Query   string
	History []*models.ChatMessage
	Profile *models.Profile
}

// Streamer produces an answer as a stream of content chunks. The pipeline
// behind it is opaque to callers; they only pull chunks until io.EOF.
type Streamer interface {
	Stream(ctx context.Context, req Request) (*schema.StreamReader[string], error)
}

// New builds the configured pipeline: the plain retrieval chain by default,
// the tool-using agent when chain.agentic is set.
func New(ctx context.Context, cfg *config.Config, kb retriever.Retriever) (Streamer, error) {
	chatModel, err := newChatModel(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Chain.Agentic {
		return newAgenticChain(ctx, chatModel, kb)
	}
	return newRAGChain(chatModel, kb)
}

func historyToMessages(history []*models.ChatMessage) []*schema.Message {
	messages := make([]*schema.Message, 0, len(history))
	for _, msg := range history {
		if msg == nil {
			continue
		}
		role := schema.User
		if msg.Role == models.RoleAI {
			role = schema.Assistant
		}
		messages = append(messages, &schema.Message{Role: role, Content: msg.Content})
	}
	return messages
}

// contentStream drops empty frames and reduces a message stream to its text.
func contentStream(src *schema.StreamReader[*schema.Message]) *schema.StreamReader[string] {
	return schema.StreamReaderWithConvert(src, func(msg *schema.Message) (string, error) {
		if msg == nil || msg.Content == "" {
			return "", schema.ErrNoValue
		}
		return msg.Content, nil
	})
}

func promptValues(req Request) map[string]any {
	profile := req.Profile
	if profile == nil {
		profile = &models.Profile{}
	}
	return map[string]any{
		"nickname":           orUnspecified(profile.Nickname),
		"age":                ageValue(profile.Age),
		"gender":             orUnspecified(string(profile.Gender)),
		"diabetes_type":      orUnspecified(string(profile.DiabetesType)),
		"preferred_language": orUnspecified(string(profile.PreferredLanguage)),
		"chat_history":       historyToMessages(req.History),
		"input":              req.Query,
	}
}

func orUnspecified(v string) string {
	if v == "" {
		return "Not specified"
	}
	return v
}

func ageValue(age int) string {
	if age <= 0 {
		return "Not specified"
	}
	return fmt.Sprintf("%d", age)
}
