package domain

import (
	"fmt"
	"time"
)

// AIProvider identifies an embedding or LLM service provider.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is a locally hosted Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is the OpenAI API or a compatible endpoint.
	AIProviderOpenAI AIProvider = "openai"
)

// IsValid returns true if the provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// StorageBackend identifies the index store implementation.
type StorageBackend string

// Available storage backends.
const (
	// StoragePostgres stores chunks in PostgreSQL with the pgvector
	// extension; similarity search runs in the database.
	StoragePostgres StorageBackend = "postgres"

	// StorageSQLite stores chunks in an embedded SQLite database;
	// similarity search scans in process.
	StorageSQLite StorageBackend = "sqlite"
)

// IsValid returns true if the backend is recognised.
func (b StorageBackend) IsValid() bool {
	switch b {
	case StoragePostgres, StorageSQLite:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (b StorageBackend) String() string {
	return string(b)
}

// ChunkingSettings holds chunker geometry.
type ChunkingSettings struct {
	// Size is the chunk length in runes.
	Size int

	// Overlap is how many runes consecutive chunks share. Must be
	// smaller than Size.
	Overlap int
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama, or OpenAI-compatible
	// gateways).
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// Dimensions is the vector width the model produces. The postgres
	// backend sizes its vector column from this.
	Dimensions int

	// BatchSize caps how many texts one upstream request carries.
	BatchSize int
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds LLM provider configuration for answer synthesis.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// StorageSettings holds index store configuration.
type StorageSettings struct {
	// Backend selects the store implementation.
	Backend StorageBackend

	// PostgresDSN is the connection string for the postgres backend.
	PostgresDSN string

	// SQLitePath is the database file path for the sqlite backend.
	// Empty means the default under the user data directory.
	SQLitePath string
}

// SyncSettings holds sync engine configuration.
type SyncSettings struct {
	// Workers is the per-provider document worker pool size.
	Workers int

	// Interval is how often the serve-mode scheduler triggers a full
	// run. Zero disables scheduled runs.
	Interval time.Duration
}

// HTTPSettings holds the serve-mode HTTP API configuration.
type HTTPSettings struct {
	// Addr is the listen address, host:port.
	Addr string
}

// Settings is the complete application configuration.
type Settings struct {
	// Chunking is the chunker geometry.
	Chunking ChunkingSettings

	// Embedding is the embedding provider configuration.
	Embedding EmbeddingSettings

	// LLM is the answer-synthesis provider configuration.
	LLM LLMSettings

	// Storage is the index store configuration.
	Storage StorageSettings

	// Sync is the sync engine configuration.
	Sync SyncSettings

	// HTTP is the serve-mode API configuration.
	HTTP HTTPSettings
}

// Default configuration values.
const (
	DefaultChunkSize      = 1000
	DefaultChunkOverlap   = 150
	DefaultEmbeddingModel = "nomic-embed-text"
	DefaultDimensions     = 768
	DefaultBatchSize      = 64
	DefaultLLMModel       = "llama3.2"
	DefaultOllamaBaseURL  = "http://localhost:11434"
	DefaultSyncWorkers    = 4
	DefaultHTTPAddr       = "127.0.0.1:8787"
)

// DefaultSettings returns the out-of-the-box configuration: local-first
// (Ollama + SQLite), nothing requiring credentials.
func DefaultSettings() Settings {
	return Settings{
		Chunking: ChunkingSettings{
			Size:    DefaultChunkSize,
			Overlap: DefaultChunkOverlap,
		},
		Embedding: EmbeddingSettings{
			Provider:   AIProviderOllama,
			Model:      DefaultEmbeddingModel,
			BaseURL:    DefaultOllamaBaseURL,
			Dimensions: DefaultDimensions,
			BatchSize:  DefaultBatchSize,
		},
		LLM: LLMSettings{
			Provider: AIProviderOllama,
			Model:    DefaultLLMModel,
			BaseURL:  DefaultOllamaBaseURL,
		},
		Storage: StorageSettings{
			Backend: StorageSQLite,
		},
		Sync: SyncSettings{
			Workers:  DefaultSyncWorkers,
			Interval: time.Hour,
		},
		HTTP: HTTPSettings{
			Addr: DefaultHTTPAddr,
		},
	}
}

// Validate checks the settings for violations that would break the
// pipeline. All violations wrap ErrInvalidConfiguration.
func (s Settings) Validate() error {
	if s.Chunking.Size <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfiguration, s.Chunking.Size)
	}
	if s.Chunking.Overlap < 0 {
		return fmt.Errorf("%w: chunk overlap must not be negative, got %d", ErrInvalidConfiguration, s.Chunking.Overlap)
	}
	if s.Chunking.Overlap >= s.Chunking.Size {
		return fmt.Errorf("%w: chunk overlap %d must be smaller than chunk size %d",
			ErrInvalidConfiguration, s.Chunking.Overlap, s.Chunking.Size)
	}
	if !s.Embedding.Provider.IsValid() {
		return fmt.Errorf("%w: unknown embedding provider %q", ErrInvalidConfiguration, s.Embedding.Provider)
	}
	if s.Embedding.Dimensions <= 0 {
		return fmt.Errorf("%w: embedding dimensions must be positive, got %d", ErrInvalidConfiguration, s.Embedding.Dimensions)
	}
	if s.Embedding.BatchSize <= 0 {
		return fmt.Errorf("%w: embedding batch size must be positive, got %d", ErrInvalidConfiguration, s.Embedding.BatchSize)
	}
	if !s.Storage.Backend.IsValid() {
		return fmt.Errorf("%w: unknown storage backend %q", ErrInvalidConfiguration, s.Storage.Backend)
	}
	if s.Storage.Backend == StoragePostgres && s.Storage.PostgresDSN == "" {
		return fmt.Errorf("%w: postgres backend requires a DSN", ErrInvalidConfiguration)
	}
	if s.Sync.Workers <= 0 {
		return fmt.Errorf("%w: sync workers must be positive, got %d", ErrInvalidConfiguration, s.Sync.Workers)
	}
	return nil
}
