package api

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/studyrag/internal/export"
	"github.com/kalambet/studyrag/internal/grounded"
	"github.com/kalambet/studyrag/internal/pipeline"
	"github.com/kalambet/studyrag/internal/storage"
)

const maxRecallLimit = 50

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Pipeline *pipeline.Pipeline
	// Session is optional; when set, its last result backs
	// study://last-result until the first ask over MCP.
	Session *pipeline.Session
}

// lastResult holds the most recent result produced over MCP.
type lastResult struct {
	mu  sync.Mutex
	res *grounded.Result
}

func (l *lastResult) set(r *grounded.Result) {
	l.mu.Lock()
	l.res = r
	l.mu.Unlock()
}

func (l *lastResult) get() *grounded.Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.res
}

// NewMCPServer creates an MCP server with the study tools and resources
// registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"studyrag",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("studyrag answers questions, writes revision notes and quizzes using only the study notes you index."),
		server.WithRecovery(),
	)
	last := &lastResult{}

	s.AddTool(
		mcp.NewTool("index_notes",
			mcp.WithDescription("Index study notes so later questions can be answered from them."),
			mcp.WithString("text", mcp.Description("The study notes as plain text"), mcp.Required()),
		),
		mcpIndexNotes(deps),
	)

	s.AddTool(
		mcp.NewTool("ask",
			mcp.WithDescription("Answer a question, write revision notes or generate MCQs using only the given notes. Returns JSON with the retrieved sources."),
			mcp.WithString("text", mcp.Description("The study notes as plain text"), mcp.Required()),
			mcp.WithString("question", mcp.Description("Question or topic"), mcp.Required()),
			mcp.WithString("mode", mcp.Description("qa (default), notes or mcq"), mcp.Enum("qa", "notes", "mcq")),
			mcp.WithString("model", mcp.Description("Model to generate with (default from config)")),
			mcp.WithNumber("top_k", mcp.Description("Number of chunks to retrieve (default 5)")),
		),
		mcpAsk(deps, last),
	)

	s.AddTool(
		mcp.NewTool("recall",
			mcp.WithDescription("Search every indexed document and return the nearest chunks."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 5)")),
		),
		mcpRecall(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"study://last-result",
			"Last Result",
			mcp.WithResourceDescription("The most recent study result as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceLastResult(deps, last),
	)

	s.AddResource(
		mcp.NewResource(
			"study://documents",
			"Indexed Documents",
			mcp.WithResourceDescription("Notes currently in the index, newest first"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceDocuments(deps),
	)

	return s
}

func mcpIndexNotes(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcpError("text is required"), nil
		}

		info, err := deps.Pipeline.IndexOnly(ctx, pipeline.Source{PastedText: text})
		if err != nil {
			return mcpError(err.Error()), nil
		}

		b, err := json.Marshal(info)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal index info: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpAsk(deps MCPDeps, last *lastResult) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcpError("text is required"), nil
		}
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}

		res, err := deps.Pipeline.AnswerQuestion(ctx, pipeline.Source{PastedText: text}, pipeline.AskRequest{
			Question: question,
			Mode:     req.GetString("mode", ""),
			Model:    req.GetString("model", ""),
			TopK:     req.GetInt("top_k", 0),
		})
		if err != nil {
			return mcpError(err.Error()), nil
		}
		last.set(res)

		b, err := export.JSON(res)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpRecall(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		limit := req.GetInt("limit", 5)
		if limit <= 0 {
			limit = 5
		}
		if limit > maxRecallLimit {
			limit = maxRecallLimit
		}

		res, err := deps.Pipeline.Recall(ctx, query, limit)
		if err != nil {
			return mcpError(fmt.Sprintf("recall failed: %v", err)), nil
		}
		if len(res.Sources) == 0 {
			return mcpText("[]"), nil
		}

		b, err := json.Marshal(res.Sources)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceLastResult(deps MCPDeps, last *lastResult) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		res := last.get()
		if res == nil && deps.Session != nil {
			res = deps.Session.LastResult()
		}

		text := "null"
		if res != nil {
			b, err := export.JSON(res)
			if err != nil {
				return nil, err
			}
			text = string(b)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     text,
			},
		}, nil
	}
}

func mcpResourceDocuments(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		docs, err := deps.Pipeline.Documents(ctx, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to list documents: %w", err)
		}
		if docs == nil {
			docs = []storage.Document{}
		}

		b, err := json.Marshal(docs)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal documents: %w", err)
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
