package domain

// SearchOptions configures a search query.
type SearchOptions struct {
	// Limit is the maximum number of results. Defaults to 10.
	Limit int

	// ProviderType restricts results to one provider type when set.
	ProviderType ProviderType

	// ProviderName restricts results to one provider instance when set.
	// Only meaningful together with ProviderType.
	ProviderName string
}

// SearchResult represents a single search hit.
type SearchResult struct {
	// Chunk is the matched chunk record.
	Chunk ChunkRecord

	// Score is the cosine similarity between the query and the chunk,
	// in [-1, 1]; higher is closer.
	Score float64
}

// Answer is the outcome of an ask query: a synthesised answer plus the
// retrieved chunks it was grounded on.
type Answer struct {
	// Text is the model's answer.
	Text string

	// Model is the LLM that produced the answer.
	Model string

	// Sources are the search results supplied as context, in rank order.
	Sources []SearchResult
}
