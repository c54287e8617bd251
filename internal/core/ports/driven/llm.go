package driven

import "context"

// LLMService provides answer synthesis for ask queries.
// This is an optional service - when nil, ask is disabled and search
// still works.
//
// Implementations may include:
//   - OpenAI (GPT-4 class models and compatible endpoints)
//   - Ollama (local models)
type LLMService interface {
	// Complete produces a single completion for a system instruction
	// and user prompt pair.
	Complete(ctx context.Context, system, prompt string) (string, error)

	// ModelName returns the name of the model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight
	// test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
