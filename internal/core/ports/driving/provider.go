package driving

import (
	"context"

	"github.com/trawlhq/trawl/internal/core/domain"
)

// ProviderManager administers configured provider instances.
type ProviderManager interface {
	// Add validates and stores a new provider instance. Secrets are
	// stored separately from the instance options. Returns
	// domain.ErrAlreadyExists if (type, name) is taken and
	// domain.ErrInvalidConfiguration for unknown types or missing
	// required options.
	Add(ctx context.Context, inst domain.ProviderInstance, secrets map[string]string) error

	// List returns all configured instances in creation order.
	List(ctx context.Context) ([]domain.ProviderInstance, error)

	// Remove deletes an instance, its secrets, and everything it has
	// indexed (chunks and tracking records).
	Remove(ctx context.Context, providerType domain.ProviderType, name string) error

	// SetEnabled flips an instance's participation in sync runs without
	// touching its indexed documents.
	SetEnabled(ctx context.Context, providerType domain.ProviderType, name string, enabled bool) error

	// Probe builds the provider and checks backend connectivity.
	Probe(ctx context.Context, providerType domain.ProviderType, name string) (domain.ProbeResult, error)

	// SecretOptions reports which option keys of a provider type hold
	// credentials, so front-ends can prompt for them safely.
	SecretOptions(providerType domain.ProviderType) ([]string, error)
}
