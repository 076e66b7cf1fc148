package chain

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
)

// ragChain grounds each answer in chunks retrieved from the knowledge base
// and streams the model's completion back to the caller.
type ragChain struct {
	chatModel model.ToolCallingChatModel
	kb        retriever.Retriever
	template  prompt.ChatTemplate
}

func newRAGChain(chatModel model.ToolCallingChatModel, kb retriever.Retriever) (*ragChain, error) {
	template := prompt.FromMessages(schema.FString,
		schema.SystemMessage(ragSystemPrompt),
		schema.MessagesPlaceholder("chat_history", true),
		schema.UserMessage("{input}"),
	)
	return &ragChain{chatModel: chatModel, kb: kb, template: template}, nil
}

func (r *ragChain) Stream(ctx context.Context, req Request) (*schema.StreamReader[string], error) {
	docs, err := r.kb.Retrieve(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}

	values := promptValues(req)
	values["context"] = joinDocuments(docs)

	messages, err := r.template.Format(ctx, values)
	if err != nil {
		return nil, fmt.Errorf("format prompt: %w", err)
	}

	stream, err := r.chatModel.Stream(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("stream completion: %w", err)
	}
	return contentStream(stream), nil
}

func joinDocuments(docs []*schema.Document) string {
	if len(docs) == 0 {
		return "No relevant context found."
	}
	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		content := strings.TrimSpace(doc.Content)
		if content != "" {
			parts = append(parts, content)
		}
	}
	return strings.Join(parts, "\n\n")
}
