package services

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/trawlhq/trawl/internal/core/domain"
	"github.com/trawlhq/trawl/internal/core/ports/driven"
	"github.com/trawlhq/trawl/internal/core/ports/driving"
)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyChunkSize       = "chunking.size"
	keyChunkOverlap    = "chunking.overlap"
	keyEmbedProvider   = "embedding.provider"
	keyEmbedModel      = "embedding.model"
	keyEmbedBaseURL    = "embedding.base_url"
	keyEmbedAPIKey     = "embedding.api_key"
	keyEmbedDimensions = "embedding.dimensions"
	keyEmbedBatchSize  = "embedding.batch_size"
	keyLLMProvider     = "llm.provider"
	keyLLMModel        = "llm.model"
	keyLLMBaseURL      = "llm.base_url"
	keyLLMAPIKey       = "llm.api_key"
	keyStorageBackend  = "storage.backend"
	keyStoragePGDSN    = "storage.postgres_dsn"
	keyStorageSQLite   = "storage.sqlite_path"
	keySyncWorkers     = "sync.workers"
	keySyncInterval    = "sync.interval"
	keyHTTPAddr        = "http.addr"
)

// settableKeys is every key Set and Get accept.
var settableKeys = []string{
	keyChunkSize,
	keyChunkOverlap,
	keyEmbedProvider,
	keyEmbedModel,
	keyEmbedBaseURL,
	keyEmbedAPIKey,
	keyEmbedDimensions,
	keyEmbedBatchSize,
	keyLLMProvider,
	keyLLMModel,
	keyLLMBaseURL,
	keyLLMAPIKey,
	keyStorageBackend,
	keyStoragePGDSN,
	keyStorageSQLite,
	keySyncWorkers,
	keySyncInterval,
	keyHTTPAddr,
}

// SettingsService materialises application settings from the config store
// over compiled-in defaults.
type SettingsService struct {
	configStore driven.ConfigStore
}

// Ensure SettingsService implements the interface.
var _ driving.SettingsManager = (*SettingsService)(nil)

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{configStore: configStore}
}

// Settings returns the materialised settings: stored values over defaults,
// validated.
func (s *SettingsService) Settings() (domain.Settings, error) {
	settings := s.materialise()
	if err := settings.Validate(); err != nil {
		return domain.Settings{}, err
	}
	return settings, nil
}

// Set writes one settings key. The value is parsed according to the key's
// type and the resulting settings are validated before anything persists.
func (s *SettingsService) Set(key, value string) error {
	settings := s.materialise()

	stored, err := applyKey(&settings, key, value)
	if err != nil {
		return err
	}
	if err := settings.Validate(); err != nil {
		return err
	}

	if err := s.configStore.Set(key, stored); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Get returns one settings key's effective value as a string.
func (s *SettingsService) Get(key string) (string, error) {
	settings := s.materialise()

	switch key {
	case keyChunkSize:
		return strconv.Itoa(settings.Chunking.Size), nil
	case keyChunkOverlap:
		return strconv.Itoa(settings.Chunking.Overlap), nil
	case keyEmbedProvider:
		return settings.Embedding.Provider.String(), nil
	case keyEmbedModel:
		return settings.Embedding.Model, nil
	case keyEmbedBaseURL:
		return settings.Embedding.BaseURL, nil
	case keyEmbedAPIKey:
		return settings.Embedding.APIKey, nil
	case keyEmbedDimensions:
		return strconv.Itoa(settings.Embedding.Dimensions), nil
	case keyEmbedBatchSize:
		return strconv.Itoa(settings.Embedding.BatchSize), nil
	case keyLLMProvider:
		return settings.LLM.Provider.String(), nil
	case keyLLMModel:
		return settings.LLM.Model, nil
	case keyLLMBaseURL:
		return settings.LLM.BaseURL, nil
	case keyLLMAPIKey:
		return settings.LLM.APIKey, nil
	case keyStorageBackend:
		return settings.Storage.Backend.String(), nil
	case keyStoragePGDSN:
		return settings.Storage.PostgresDSN, nil
	case keyStorageSQLite:
		return settings.Storage.SQLitePath, nil
	case keySyncWorkers:
		return strconv.Itoa(settings.Sync.Workers), nil
	case keySyncInterval:
		return settings.Sync.Interval.String(), nil
	case keyHTTPAddr:
		return settings.HTTP.Addr, nil
	default:
		return "", fmt.Errorf("%w: unknown settings key %q", domain.ErrInvalidInput, key)
	}
}

// Keys returns the settable keys, sorted.
func (s *SettingsService) Keys() []string {
	keys := make([]string, len(settableKeys))
	copy(keys, settableKeys)
	sort.Strings(keys)
	return keys
}

// materialise builds settings from the config store over defaults. Invalid
// stored values fall back to the default rather than poisoning reads.
func (s *SettingsService) materialise() domain.Settings {
	settings := domain.DefaultSettings()

	settings.Chunking.Size = s.getInt(keyChunkSize, settings.Chunking.Size)
	settings.Chunking.Overlap = s.getIntAllowZero(keyChunkOverlap, settings.Chunking.Overlap)

	settings.Embedding.Provider = s.getProvider(keyEmbedProvider, settings.Embedding.Provider)
	settings.Embedding.Model = s.getString(keyEmbedModel, settings.Embedding.Model)
	settings.Embedding.BaseURL = s.getString(keyEmbedBaseURL, settings.Embedding.BaseURL)
	settings.Embedding.APIKey = s.configStore.GetString(keyEmbedAPIKey)
	settings.Embedding.Dimensions = s.getInt(keyEmbedDimensions, settings.Embedding.Dimensions)
	settings.Embedding.BatchSize = s.getInt(keyEmbedBatchSize, settings.Embedding.BatchSize)

	settings.LLM.Provider = s.getProvider(keyLLMProvider, settings.LLM.Provider)
	settings.LLM.Model = s.getString(keyLLMModel, settings.LLM.Model)
	settings.LLM.BaseURL = s.getString(keyLLMBaseURL, settings.LLM.BaseURL)
	settings.LLM.APIKey = s.configStore.GetString(keyLLMAPIKey)

	if backend := domain.StorageBackend(s.configStore.GetString(keyStorageBackend)); backend.IsValid() {
		settings.Storage.Backend = backend
	}
	settings.Storage.PostgresDSN = s.configStore.GetString(keyStoragePGDSN)
	settings.Storage.SQLitePath = s.configStore.GetString(keyStorageSQLite)

	settings.Sync.Workers = s.getInt(keySyncWorkers, settings.Sync.Workers)
	if interval := s.configStore.GetString(keySyncInterval); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			settings.Sync.Interval = d
		}
	}

	settings.HTTP.Addr = s.getString(keyHTTPAddr, settings.HTTP.Addr)
	return settings
}

// applyKey parses value for key into settings and returns the typed value
// to persist.
//
//nolint:gocyclo // One arm per settings key
func applyKey(settings *domain.Settings, key, value string) (any, error) {
	switch key {
	case keyChunkSize:
		n, err := parsePositiveInt(key, value)
		if err != nil {
			return nil, err
		}
		settings.Chunking.Size = n
		return n, nil
	case keyChunkOverlap:
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s wants an integer, got %q", domain.ErrInvalidInput, key, value)
		}
		settings.Chunking.Overlap = n
		return n, nil
	case keyEmbedProvider:
		provider := domain.AIProvider(value)
		if !provider.IsValid() {
			return nil, fmt.Errorf("%w: unknown embedding provider %q", domain.ErrInvalidInput, value)
		}
		settings.Embedding.Provider = provider
		return value, nil
	case keyEmbedModel:
		settings.Embedding.Model = value
		return value, nil
	case keyEmbedBaseURL:
		settings.Embedding.BaseURL = value
		return value, nil
	case keyEmbedAPIKey:
		settings.Embedding.APIKey = value
		return value, nil
	case keyEmbedDimensions:
		n, err := parsePositiveInt(key, value)
		if err != nil {
			return nil, err
		}
		settings.Embedding.Dimensions = n
		return n, nil
	case keyEmbedBatchSize:
		n, err := parsePositiveInt(key, value)
		if err != nil {
			return nil, err
		}
		settings.Embedding.BatchSize = n
		return n, nil
	case keyLLMProvider:
		provider := domain.AIProvider(value)
		if !provider.IsValid() {
			return nil, fmt.Errorf("%w: unknown llm provider %q", domain.ErrInvalidInput, value)
		}
		settings.LLM.Provider = provider
		return value, nil
	case keyLLMModel:
		settings.LLM.Model = value
		return value, nil
	case keyLLMBaseURL:
		settings.LLM.BaseURL = value
		return value, nil
	case keyLLMAPIKey:
		settings.LLM.APIKey = value
		return value, nil
	case keyStorageBackend:
		backend := domain.StorageBackend(value)
		if !backend.IsValid() {
			return nil, fmt.Errorf("%w: unknown storage backend %q", domain.ErrInvalidInput, value)
		}
		settings.Storage.Backend = backend
		return value, nil
	case keyStoragePGDSN:
		settings.Storage.PostgresDSN = value
		return value, nil
	case keyStorageSQLite:
		settings.Storage.SQLitePath = value
		return value, nil
	case keySyncWorkers:
		n, err := parsePositiveInt(key, value)
		if err != nil {
			return nil, err
		}
		settings.Sync.Workers = n
		return n, nil
	case keySyncInterval:
		d, err := time.ParseDuration(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s wants a duration like \"30m\", got %q", domain.ErrInvalidInput, key, value)
		}
		if d < 0 {
			return nil, fmt.Errorf("%w: %s must not be negative", domain.ErrInvalidInput, key)
		}
		settings.Sync.Interval = d
		return value, nil
	case keyHTTPAddr:
		settings.HTTP.Addr = value
		return value, nil
	default:
		return nil, fmt.Errorf("%w: unknown settings key %q", domain.ErrInvalidInput, key)
	}
}

func parsePositiveInt(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s wants an integer, got %q", domain.ErrInvalidInput, key, value)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%w: %s must be positive, got %d", domain.ErrInvalidInput, key, n)
	}
	return n, nil
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val <= 0 {
		return defaultVal
	}
	return val
}

// getIntAllowZero treats a stored zero as a real value. Chunk overlap zero
// is legitimate; only an absent key falls back.
func (s *SettingsService) getIntAllowZero(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(val)
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}
