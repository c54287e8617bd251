package driven

import "context"

// EmbeddingService generates vector embeddings for text.
//
// Implementations may include:
//   - OpenAI (text-embedding-3-small and compatible endpoints)
//   - Ollama (local models such as nomic-embed-text)
type EmbeddingService interface {
	// Embed generates an embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts. The contract
	// is all-or-nothing and order-preserving: on success the result has
	// exactly one vector per input, result[i] belonging to texts[i];
	// on any failure no partial result is returned. Splitting into
	// provider-sized sub-batches and retrying transient failures happen
	// inside the implementation; callers never retry.
	//
	// An empty input returns an empty result without contacting the
	// provider.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight
	// test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
