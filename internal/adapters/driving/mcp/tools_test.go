package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trawlhq/trawl/internal/core/domain"
)

func TestServer_handleSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("returns search results", func(t *testing.T) {
		mockSearch := &mockSearcher{
			results: []domain.SearchResult{
				{
					Chunk: domain.ChunkRecord{
						DocumentID:   "doc-1",
						ProviderType: domain.ProviderLocal,
						ProviderName: "notes",
						Position:     2,
						Text:         "This is the chunk text",
						Filename:     "notes/alpha.md",
					},
					Score: 0.91,
				},
			},
		}

		ports := &Ports{Search: mockSearch}
		server, err := NewServer(ports)
		require.NoError(t, err)

		input := SearchInput{Query: "alpha", Limit: 10}
		_, output, err := server.handleSearch(ctx, nil, input)

		require.NoError(t, err)
		assert.Equal(t, 1, output.Count)
		assert.Len(t, output.Results, 1)
		assert.Equal(t, "doc-1", output.Results[0].DocumentID)
		assert.Equal(t, "notes/alpha.md", output.Results[0].Filename)
		assert.Equal(t, "local/notes", output.Results[0].Provider)
		assert.Equal(t, 2, output.Results[0].Position)
		assert.Equal(t, 0.91, output.Results[0].Score)
		assert.Equal(t, "This is the chunk text", output.Results[0].Text)
		assert.Equal(t, "alpha", mockSearch.lastQuery)
	})

	t.Run("default limit is 10", func(t *testing.T) {
		mockSearch := &mockSearcher{}
		ports := &Ports{Search: mockSearch}
		server, err := NewServer(ports)
		require.NoError(t, err)

		input := SearchInput{Query: "test", Limit: 0}
		_, output, err := server.handleSearch(ctx, nil, input)

		require.NoError(t, err)
		assert.Equal(t, 0, output.Count)
		assert.Equal(t, 10, mockSearch.lastOpts.Limit)
	})

	t.Run("passes provider filter", func(t *testing.T) {
		mockSearch := &mockSearcher{}
		ports := &Ports{Search: mockSearch}
		server, err := NewServer(ports)
		require.NoError(t, err)

		input := SearchInput{Query: "test", ProviderType: "s3", ProviderName: "reports"}
		_, _, err = server.handleSearch(ctx, nil, input)

		require.NoError(t, err)
		assert.Equal(t, domain.ProviderS3, mockSearch.lastOpts.ProviderType)
		assert.Equal(t, "reports", mockSearch.lastOpts.ProviderName)
	})

	t.Run("rejects unknown provider type", func(t *testing.T) {
		mockSearch := &mockSearcher{}
		ports := &Ports{Search: mockSearch}
		server, err := NewServer(ports)
		require.NoError(t, err)

		input := SearchInput{Query: "test", ProviderType: "gopher"}
		_, _, err = server.handleSearch(ctx, nil, input)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown provider type")
	})

	t.Run("returns error on search failure", func(t *testing.T) {
		mockSearch := &mockSearcher{
			err: errors.New("search failed"),
		}

		ports := &Ports{Search: mockSearch}
		server, err := NewServer(ports)
		require.NoError(t, err)

		input := SearchInput{Query: "test"}
		_, _, err = server.handleSearch(ctx, nil, input)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "search failed")
	})
}

func TestServer_handleAsk(t *testing.T) {
	ctx := context.Background()

	t.Run("returns answer with sources", func(t *testing.T) {
		mockAsk := &mockAsker{
			answer: &domain.Answer{
				Text:  "Alpha is documented in the notes [1].",
				Model: "llama3.2",
				Sources: []domain.SearchResult{
					{
						Chunk: domain.ChunkRecord{
							DocumentID:   "doc-1",
							ProviderType: domain.ProviderLocal,
							ProviderName: "notes",
							Filename:     "notes/alpha.md",
						},
						Score: 0.91,
					},
				},
			},
		}

		ports := &Ports{Search: &mockSearcher{}, Ask: mockAsk}
		server, err := NewServer(ports)
		require.NoError(t, err)

		input := AskInput{Question: "what is alpha?", TopK: 3}
		_, output, err := server.handleAsk(ctx, nil, input)

		require.NoError(t, err)
		assert.Equal(t, "Alpha is documented in the notes [1].", output.Answer)
		assert.Equal(t, "llama3.2", output.Model)
		require.Len(t, output.Sources, 1)
		assert.Equal(t, "notes/alpha.md", output.Sources[0].Filename)
		assert.Equal(t, "what is alpha?", mockAsk.lastQuestion)
		assert.Equal(t, 3, mockAsk.lastTopK)
	})

	t.Run("default top_k is 5", func(t *testing.T) {
		mockAsk := &mockAsker{
			answer: &domain.Answer{Text: "answer", Model: "llama3.2"},
		}

		ports := &Ports{Search: &mockSearcher{}, Ask: mockAsk}
		server, err := NewServer(ports)
		require.NoError(t, err)

		input := AskInput{Question: "anything", TopK: 0}
		_, _, err = server.handleAsk(ctx, nil, input)

		require.NoError(t, err)
		assert.Equal(t, 5, mockAsk.lastTopK)
	})

	t.Run("returns error on ask failure", func(t *testing.T) {
		mockAsk := &mockAsker{
			err: domain.ErrLLMUnavailable,
		}

		ports := &Ports{Search: &mockSearcher{}, Ask: mockAsk}
		server, err := NewServer(ports)
		require.NoError(t, err)

		input := AskInput{Question: "anything"}
		_, _, err = server.handleAsk(ctx, nil, input)

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
	})
}
