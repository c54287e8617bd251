package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/trawlhq/trawl/internal/core/domain"
	"github.com/trawlhq/trawl/internal/core/ports/driven"
	"github.com/trawlhq/trawl/internal/core/ports/driving"
	"github.com/trawlhq/trawl/internal/logger"
)

// DefaultSearchLimit is used when the caller does not set one.
const DefaultSearchLimit = 10

// filterOverfetch is how many times the requested limit is fetched from
// the store when an in-memory provider filter will discard results.
const filterOverfetch = 4

// SearchService answers semantic queries: embed the query once, let the
// store rank chunks by vector distance, optionally filter by provider.
type SearchService struct {
	embedder driven.EmbeddingService
	store    driven.ChunkStore
}

// Ensure SearchService implements the interface.
var _ driving.Searcher = (*SearchService)(nil)

// NewSearchService creates a new search service.
func NewSearchService(embedder driven.EmbeddingService, store driven.ChunkStore) *SearchService {
	return &SearchService{
		embedder: embedder,
		store:    store,
	}
}

// Search embeds the query and returns the nearest chunks, best first.
func (s *SearchService) Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	// The store ranks globally; a provider filter is applied here, so
	// fetch extra to keep the filtered result full.
	fetchLimit := limit
	filtered := opts.ProviderType != ""
	if filtered {
		fetchLimit = limit * filterOverfetch
	}

	results, err := s.store.SearchChunks(ctx, embedding, fetchLimit)
	if err != nil {
		return nil, fmt.Errorf("searching chunks: %w", err)
	}

	if filtered {
		results = filterByProvider(results, opts.ProviderType, opts.ProviderName)
	}
	if len(results) > limit {
		results = results[:limit]
	}

	logger.Debug("Search %q returned %d result(s)", query, len(results))
	return results, nil
}

func filterByProvider(results []domain.SearchResult, providerType domain.ProviderType, providerName string) []domain.SearchResult {
	kept := results[:0]
	for _, res := range results {
		if res.Chunk.ProviderType != providerType {
			continue
		}
		if providerName != "" && res.Chunk.ProviderName != providerName {
			continue
		}
		kept = append(kept, res)
	}
	return kept
}
