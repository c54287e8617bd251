package driving

import "github.com/trawlhq/trawl/internal/core/domain"

// SettingsManager reads and writes application settings.
type SettingsManager interface {
	// Settings returns the materialised settings: stored values over
	// defaults, validated.
	Settings() (domain.Settings, error)

	// Set writes one settings key ("chunking.size", "embedding.model").
	// The value is parsed according to the key's type and validated in
	// context of the full settings before persisting.
	Set(key, value string) error

	// Get returns one settings key's effective value as a string.
	Get(key string) (string, error)

	// Keys returns the settable keys, sorted.
	Keys() []string
}
