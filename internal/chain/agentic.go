package chain

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/tool/duckduckgo/v2"
	"github.com/cloudwego/eino-ext/components/tool/googlesearch"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"
)

// agenticChain answers through a react agent that decides when to consult
// the knowledge base or fall back to web search.
type agenticChain struct {
	agent    *react.Agent
	template prompt.ChatTemplate
}

func newAgenticChain(ctx context.Context, chatModel model.ToolCallingChatModel, kb retriever.Retriever) (*agenticChain, error) {
	tools := []tool.BaseTool{newKnowledgeTool(kb)}
	if ws := newWebSearchTool(ctx); ws != nil {
		tools = append(tools, ws)
	}

	agent, err := react.NewAgent(ctx, &react.AgentConfig{
		ToolCallingModel: chatModel,
		ToolsConfig: compose.ToolsNodeConfig{
			Tools: tools,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("init react agent: %w", err)
	}

	template := prompt.FromMessages(schema.FString,
		schema.SystemMessage(agentSystemPrompt),
		schema.MessagesPlaceholder("chat_history", true),
		schema.UserMessage("{input}"),
	)
	return &agenticChain{agent: agent, template: template}, nil
}

func (a *agenticChain) Stream(ctx context.Context, req Request) (*schema.StreamReader[string], error) {
	messages, err := a.template.Format(ctx, promptValues(req))
	if err != nil {
		return nil, fmt.Errorf("format prompt: %w", err)
	}

	stream, err := a.agent.Stream(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("stream agent: %w", err)
	}
	return contentStream(stream), nil
}

type knowledgeTool struct {
	kb retriever.Retriever
}

type knowledgeToolParams struct {
	Query string `json:"query"`
}

// newKnowledgeTool exposes the vector store to the agent as its primary
// source for diabetes management information.
func newKnowledgeTool(kb retriever.Retriever) tool.InvokableTool {
	kt := &knowledgeTool{kb: kb}
	info := &schema.ToolInfo{
		Name: "diabetes_knowledge",
		Desc: "Search the curated diabetes knowledge base. " +
			"Use this tool first for any diabetes management question; " +
			"fall back to web search only when it returns nothing useful.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Desc:     "Natural language question about diabetes management",
				Type:     schema.String,
				Required: true,
			},
		}),
	}
	return utils.NewTool(info, kt.run)
}

func (t *knowledgeTool) run(ctx context.Context, params *knowledgeToolParams) (string, error) {
	if params == nil || strings.TrimSpace(params.Query) == "" {
		return "", errors.New("query must not be empty")
	}
	docs, err := t.kb.Retrieve(ctx, params.Query)
	if err != nil {
		return "", fmt.Errorf("search knowledge base: %w", err)
	}
	if len(docs) == 0 {
		return "No matching knowledge base entries.", nil
	}
	return joinDocuments(docs), nil
}

// newWebSearchTool prefers google when credentials are present and falls
// back to duckduckgo, which needs no token.
func newWebSearchTool(ctx context.Context) tool.InvokableTool {
	if googleTool := initGoogleSearch(ctx); googleTool != nil {
		return googleTool
	}

	duckTool, err := duckduckgo.NewTextSearchTool(ctx, &duckduckgo.Config{
		ToolName:   "web_search",
		ToolDesc:   "Search the web for diabetes-related information not covered by the knowledge base.",
		MaxResults: 3,
		Region:     duckduckgo.RegionWT,
		Timeout:    10 * time.Second,
	})
	if err != nil {
		log.Printf("web search tool disabled: %v", err)
		return nil
	}
	return duckTool
}

func initGoogleSearch(ctx context.Context) tool.InvokableTool {
	apiKey := os.Getenv("GOOGLE_API_KEY")
	engineID := os.Getenv("GOOGLE_SEARCH_ENGINE_ID")
	if apiKey == "" || engineID == "" {
		return nil
	}
	googleTool, err := googlesearch.NewTool(ctx, &googlesearch.Config{
		ToolName:       "web_search",
		ToolDesc:       "Search the web for diabetes-related information not covered by the knowledge base.",
		APIKey:         apiKey,
		SearchEngineID: engineID,
		Lang:           "en",
		Num:            5,
	})
	if err != nil {
		log.Printf("google search tool disabled: %v", err)
		return nil
	}
	return googleTool
}
