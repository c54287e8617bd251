package driving

import (
	"context"

	"github.com/trawlhq/trawl/internal/core/domain"
)

// Searcher executes semantic queries against the index.
type Searcher interface {
	// Search embeds the query and returns the nearest chunks, best
	// first. An empty index yields an empty result, not an error.
	Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error)
}

// Asker answers questions grounded on indexed content.
type Asker interface {
	// Ask retrieves the chunks most relevant to the question, asks the
	// configured LLM to answer from them, and returns the answer with
	// its sources. Returns domain.ErrLLMUnavailable when no LLM is
	// configured.
	Ask(ctx context.Context, question string, topK int) (*domain.Answer, error)
}
