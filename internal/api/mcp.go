package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/curador/internal/document"
	"github.com/kalambet/curador/internal/pipeline"
	"github.com/kalambet/curador/internal/retrieval"
)

const maxSearchResults = 20

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Curator   *pipeline.Curator
	Retriever pipeline.ContextRetriever // optional; nil reports an unconfigured knowledge base
	Version   string
}

// NewMCPServer creates an MCP server exposing curation, categorization and
// knowledge base search as tools.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"curador",
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions("curador: extracts metadata from scientific documents and renders a curation verdict for the "+deps.Curator.Partition().Name+" knowledge base."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("curate_document",
			mcp.WithDescription("Extract the requested metadata fields from a document and judge whether it should enter the knowledge base."),
			mcp.WithString("encoded_content", mcp.Description("Base64 document payload")),
			mcp.WithString("text", mcp.Description("Plain text document, used when encoded_content is empty")),
			mcp.WithString("content_type", mcp.Description(`"pdf" or "text" (default "text")`)),
			mcp.WithArray("headers", mcp.Description("Spreadsheet column names to fill"), mcp.Required(), mcp.WithStringItems()),
			mcp.WithString("category", mcp.Description("Domain tag selecting the curation rules")),
		),
		mcpCurate(deps),
	)

	s.AddTool(
		mcp.NewTool("categorize_document",
			mcp.WithDescription("Classify a document into one of the configured domain categories."),
			mcp.WithString("encoded_content", mcp.Description("Base64 document payload")),
			mcp.WithString("text", mcp.Description("Plain text document, used when encoded_content is empty")),
			mcp.WithString("content_type", mcp.Description(`"pdf" or "text" (default "text")`)),
		),
		mcpCategorize(deps),
	)

	s.AddTool(
		mcp.NewTool("search_knowledge",
			mcp.WithDescription("Search the knowledge base for documents similar to the query and return the context block used for contradiction checks."),
			mcp.WithString("query", mcp.Description("Search text"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of documents (default 3)")),
		),
		mcpSearchKnowledge(deps),
	)

	return s
}

// toolRequest builds a pipeline request from tool arguments.
func toolRequest(req mcp.CallToolRequest) (pipeline.Request, error) {
	encoded := req.GetString("encoded_content", "")
	contentType := req.GetString("content_type", "")
	if encoded == "" {
		text := req.GetString("text", "")
		if text == "" {
			return pipeline.Request{}, fmt.Errorf("encoded_content or text is required")
		}
		encoded = base64.StdEncoding.EncodeToString([]byte(text))
		if contentType == "" {
			contentType = string(document.KindText)
		}
	}
	if contentType == "" {
		contentType = string(document.KindText)
	}
	return pipeline.Request{
		EncodedContent: encoded,
		ContentType:    contentType,
		Headers:        req.GetStringSlice("headers", nil),
		Category:       req.GetString("category", ""),
	}, nil
}

func mcpCurate(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		preq, err := toolRequest(req)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		if len(preq.Headers) == 0 {
			return mcpError("headers is required"), nil
		}

		values, err := deps.Curator.Curate(ctx, preq)
		if err != nil {
			return mcpError(fmt.Sprintf("curation failed: %v", err)), nil
		}

		b, err := json.Marshal(values)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpCategorize(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		preq, err := toolRequest(req)
		if err != nil {
			return mcpError(err.Error()), nil
		}

		res, err := deps.Curator.Categorize(ctx, preq)
		if err != nil {
			return mcpError(fmt.Sprintf("categorization failed: %v", err)), nil
		}

		b, err := json.Marshal(res)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

type searchResult struct {
	Outcome string `json:"outcome"`
	Hits    int    `json:"hits"`
	Context string `json:"context"`
}

func mcpSearchKnowledge(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		limit := req.GetInt("limit", retrieval.DefaultLimit)
		if limit <= 0 {
			limit = retrieval.DefaultLimit
		}
		if limit > maxSearchResults {
			limit = maxSearchResults
		}

		digest := retrieval.UnconfiguredDigest()
		if deps.Retriever != nil {
			digest = deps.Retriever.RetrieveContext(ctx, query, limit)
		}

		b, err := json.Marshal(searchResult{
			Outcome: digest.Outcome.String(),
			Hits:    digest.Hits,
			Context: digest.Text,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
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
