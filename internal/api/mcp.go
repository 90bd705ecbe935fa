package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/tutordesk/internal/intent"
	"github.com/kalambet/tutordesk/internal/knowledge"
)

// Asker answers a standalone question outside any chat session.
type Asker interface {
	Ask(ctx context.Context, question string) (string, []knowledge.Source, error)
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Asker    Asker
	Searcher KnowledgeSearcher
	Catalog  *knowledge.Catalog
}

// NewMCPServer creates an MCP server exposing the support assistant's tools
// and the topic catalog.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"tutordesk",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("tutordesk: student support assistant for an education center. Answers questions from the knowledge base and classifies requests."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ask",
			mcp.WithDescription("Answer a student question grounded in the knowledge base."),
			mcp.WithString("question", mcp.Description("The question, in the student's words"), mcp.Required()),
		),
		mcpAsk(deps),
	)

	s.AddTool(
		mcp.NewTool("search_knowledge",
			mcp.WithDescription("Search the ingested knowledge index and return matching sources."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 5)")),
		),
		mcpSearchKnowledge(deps),
	)

	s.AddTool(
		mcp.NewTool("classify_intent",
			mcp.WithDescription("Classify a student message as payments, schedule, ticket, knowledge, or general."),
			mcp.WithString("text", mcp.Description("The message to classify"), mcp.Required()),
		),
		mcpClassifyIntent(),
	)

	s.AddResource(
		mcp.NewResource(
			"catalog://topics",
			"Support topics",
			mcp.WithResourceDescription("Built-in help topics the assistant answers from"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceTopics(deps),
	)

	return s
}

// NewMCPHandler serves s over the streamable HTTP transport.
func NewMCPHandler(s *server.MCPServer) http.Handler {
	return server.NewStreamableHTTPServer(s)
}

func mcpAsk(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}
		answer, sources, err := deps.Asker.Ask(ctx, question)
		if err != nil {
			return mcpError(fmt.Sprintf("answer failed: %v", err)), nil
		}
		return mcpJSON(struct {
			Answer  string             `json:"answer"`
			Sources []knowledge.Source `json:"sources"`
		}{answer, nonNil(sources)})
	}
}

func mcpSearchKnowledge(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}
		limit := req.GetInt("limit", defaultSearchLimit)
		if limit <= 0 {
			limit = defaultSearchLimit
		}
		if limit > maxSearchLimit {
			limit = maxSearchLimit
		}
		sources, err := deps.Searcher.Search(ctx, query, limit)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}
		return mcpJSON(nonNil(sources))
	}
}

func mcpClassifyIntent() server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcpError("text is required"), nil
		}
		out := struct {
			Intent    intent.Intent `json:"intent"`
			Requested intent.Intent `json:"requested_escalation,omitempty"`
		}{Intent: intent.Classify(text)}
		if requested, ok := intent.RequestedEscalation(text); ok {
			out.Requested = requested
		}
		return mcpJSON(out)
	}
}

type topicView struct {
	Title string   `json:"title"`
	Tags  []string `json:"tags,omitempty"`
	URL   string   `json:"url,omitempty"`
}

func mcpResourceTopics(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		docs := deps.Catalog.Documents()
		topics := make([]topicView, len(docs))
		for i, d := range docs {
			topics[i] = topicView{Title: d.Title, Tags: d.Tags, URL: d.URL}
		}
		b, err := json.Marshal(topics)
		if err != nil {
			return nil, fmt.Errorf("marshaling topics: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func nonNil(s []knowledge.Source) []knowledge.Source {
	if s == nil {
		return []knowledge.Source{}
	}
	return s
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
