package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/trawlhq/trawl/internal/core/domain"
)

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query        string `json:"query" jsonschema:"the search query to match against indexed documents"`
	Limit        int    `json:"limit,omitempty" jsonschema:"maximum number of results to return (default 10)"`
	ProviderType string `json:"provider_type,omitempty" jsonschema:"restrict results to one provider type (local, s3, onedrive, googledrive)"`
	ProviderName string `json:"provider_name,omitempty" jsonschema:"restrict results to one provider instance, requires provider_type"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

// SearchResultOutput represents a single search result.
type SearchResultOutput struct {
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename"`
	Provider   string  `json:"provider"`
	Position   int     `json:"position"`
	Score      float64 `json:"score"`
	Text       string  `json:"text"`
}

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question string `json:"question" jsonschema:"the question to answer from the indexed documents"`
	TopK     int    `json:"top_k,omitempty" jsonschema:"number of chunks to ground the answer on (default 5)"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer  string               `json:"answer"`
	Model   string               `json:"model"`
	Sources []SearchResultOutput `json:"sources"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Search indexed documents by semantic similarity",
	}, s.handleSearch)

	if s.ports.Ask != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "ask",
			Description: "Answer a question from the indexed documents, citing sources",
		}, s.handleAsk)
	}
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 10
	}

	opts := domain.SearchOptions{Limit: limit}
	if input.ProviderType != "" {
		providerType := domain.ProviderType(input.ProviderType)
		if !providerType.IsValid() {
			return nil, SearchOutput{}, fmt.Errorf("unknown provider type %q", input.ProviderType)
		}
		opts.ProviderType = providerType
		opts.ProviderName = input.ProviderName
	}

	results, err := s.ports.Search.Search(ctx, input.Query, opts)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	return nil, SearchOutput{
		Results: toResultOutputs(results),
		Count:   len(results),
	}, nil
}

// handleAsk handles the ask tool invocation.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	topK := input.TopK
	if topK <= 0 {
		topK = 5
	}

	answer, err := s.ports.Ask.Ask(ctx, input.Question, topK)
	if err != nil {
		return nil, AskOutput{}, err
	}

	return nil, AskOutput{
		Answer:  answer.Text,
		Model:   answer.Model,
		Sources: toResultOutputs(answer.Sources),
	}, nil
}

func toResultOutputs(results []domain.SearchResult) []SearchResultOutput {
	out := make([]SearchResultOutput, len(results))
	for i := range results {
		chunk := results[i].Chunk
		out[i] = SearchResultOutput{
			DocumentID: chunk.DocumentID,
			Filename:   chunk.Filename,
			Provider:   chunk.ProviderType.String() + "/" + chunk.ProviderName,
			Position:   chunk.Position,
			Score:      results[i].Score,
			Text:       chunk.Text,
		}
	}
	return out
}
