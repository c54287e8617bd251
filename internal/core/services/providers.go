package services

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/trawlhq/trawl/internal/core/domain"
	"github.com/trawlhq/trawl/internal/core/ports/driven"
	"github.com/trawlhq/trawl/internal/core/ports/driving"
	"github.com/trawlhq/trawl/internal/logger"
)

// instanceNamePattern constrains instance names to something that survives
// config keys, report output and URLs unquoted.
var instanceNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// ProviderService administers provider instances and builds them for sync
// runs. Instances live in the store; credentials live in the config store
// under secrets.<type>.<name>.<option> and never touch the instance row.
type ProviderService struct {
	store     driven.Store
	config    driven.ConfigStore
	factories map[domain.ProviderType]driven.ProviderFactory
}

// Ensure ProviderService implements the interfaces.
var (
	_ driving.ProviderManager = (*ProviderService)(nil)
	_ SnapshotSource          = (*ProviderService)(nil)
	_ driven.SecretSource     = (*ProviderService)(nil)
)

// NewProviderService creates the manager with the given factories. Later
// factories for an already-registered type are ignored.
func NewProviderService(store driven.Store, config driven.ConfigStore, factories ...driven.ProviderFactory) *ProviderService {
	byType := make(map[domain.ProviderType]driven.ProviderFactory, len(factories))
	for _, f := range factories {
		if _, taken := byType[f.Type()]; taken {
			continue
		}
		byType[f.Type()] = f
	}
	return &ProviderService{
		store:     store,
		config:    config,
		factories: byType,
	}
}

// Add validates and stores a new provider instance.
func (s *ProviderService) Add(ctx context.Context, inst domain.ProviderInstance, secrets map[string]string) error {
	factory, err := s.factory(inst.Type)
	if err != nil {
		return err
	}
	if !instanceNamePattern.MatchString(inst.Name) {
		return fmt.Errorf("%w: instance name %q (want lowercase letters, digits, - or _)", domain.ErrInvalidInput, inst.Name)
	}

	secretKeys := make(map[string]bool, len(factory.SecretOptions()))
	for _, key := range factory.SecretOptions() {
		secretKeys[key] = true
	}

	var missing []string
	for _, key := range factory.RequiredOptions() {
		if secretKeys[key] {
			if secrets[key] == "" && s.Secret(inst.Type, inst.Name, key) == "" {
				missing = append(missing, key)
			}
			continue
		}
		if inst.Options[key] == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required options %v", domain.ErrInvalidConfiguration, missing)
	}

	if inst.CreatedAt.IsZero() {
		inst.CreatedAt = time.Now()
	}
	if err := s.store.SaveProvider(ctx, inst); err != nil {
		return fmt.Errorf("saving provider: %w", err)
	}

	if err := s.saveSecrets(inst.Type, inst.Name, secrets); err != nil {
		// Instance without credentials is unusable; do not keep half.
		//nolint:errcheck // Best-effort rollback of the instance row
		_ = s.store.DeleteProvider(ctx, inst.Type, inst.Name)
		return err
	}

	logger.Info("Added provider %s/%s", inst.Type, inst.Name)
	return nil
}

// List returns all configured instances in creation order.
func (s *ProviderService) List(ctx context.Context) ([]domain.ProviderInstance, error) {
	return s.store.ListProviders(ctx)
}

// Remove deletes an instance, its secrets, and everything it has indexed.
func (s *ProviderService) Remove(ctx context.Context, providerType domain.ProviderType, name string) error {
	inst, err := s.store.GetProvider(ctx, providerType, name)
	if err != nil {
		return err
	}

	tracked, err := s.store.ListTracking(ctx, inst.Type, inst.Name)
	if err != nil {
		return fmt.Errorf("loading tracking state: %w", err)
	}
	for _, rec := range tracked {
		key := rec.Key()
		if err := s.store.DeleteDocumentChunks(ctx, key); err != nil {
			return fmt.Errorf("deleting chunks for %s: %w", rec.DocumentID, err)
		}
		if err := s.store.DeleteTracking(ctx, key); err != nil {
			return fmt.Errorf("deleting tracking for %s: %w", rec.DocumentID, err)
		}
	}

	s.deleteSecrets(inst.Type, inst.Name)

	if err := s.store.DeleteProvider(ctx, inst.Type, inst.Name); err != nil {
		return fmt.Errorf("deleting provider: %w", err)
	}
	logger.Info("Removed provider %s/%s (%d documents purged)", inst.Type, inst.Name, len(tracked))
	return nil
}

// SetEnabled flips an instance's participation in sync runs.
func (s *ProviderService) SetEnabled(ctx context.Context, providerType domain.ProviderType, name string, enabled bool) error {
	return s.store.SetProviderEnabled(ctx, providerType, name, enabled)
}

// Probe builds the provider and checks backend connectivity.
func (s *ProviderService) Probe(ctx context.Context, providerType domain.ProviderType, name string) (domain.ProbeResult, error) {
	snap, err := s.SnapshotOne(ctx, providerType, name)
	if err != nil {
		return domain.ProbeResult{}, err
	}
	if snap.Err != nil {
		return domain.ProbeResult{Detail: snap.Err.Error()}, snap.Err
	}
	defer func() {
		//nolint:errcheck // Probe connections are throwaway
		_ = snap.Provider.Close()
	}()
	return snap.Provider.Probe(ctx), nil
}

// SecretOptions reports which option keys of a provider type hold
// credentials.
func (s *ProviderService) SecretOptions(providerType domain.ProviderType) ([]string, error) {
	factory, err := s.factory(providerType)
	if err != nil {
		return nil, err
	}
	return factory.SecretOptions(), nil
}

// Snapshot builds every enabled instance, in creation order. Build
// failures are carried per instance so the sync run can report them.
func (s *ProviderService) Snapshot(ctx context.Context) ([]ProviderSnapshot, error) {
	instances, err := s.store.ListProviders(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing providers: %w", err)
	}

	var snaps []ProviderSnapshot
	for _, inst := range instances {
		if !inst.Enabled {
			continue
		}
		snaps = append(snaps, s.build(ctx, inst))
	}
	return snaps, nil
}

// SnapshotOne builds a single instance regardless of its enabled flag.
func (s *ProviderService) SnapshotOne(ctx context.Context, providerType domain.ProviderType, name string) (ProviderSnapshot, error) {
	inst, err := s.store.GetProvider(ctx, providerType, name)
	if err != nil {
		return ProviderSnapshot{}, err
	}
	return s.build(ctx, *inst), nil
}

func (s *ProviderService) build(ctx context.Context, inst domain.ProviderInstance) ProviderSnapshot {
	snap := ProviderSnapshot{Instance: inst}

	factory, err := s.factory(inst.Type)
	if err != nil {
		snap.Err = err
		return snap
	}

	provider, err := factory.Build(ctx, inst, s)
	if err != nil {
		snap.Err = fmt.Errorf("building provider %s/%s: %w", inst.Type, inst.Name, err)
		return snap
	}
	snap.Provider = provider
	return snap
}

// Secret resolves one stored credential. Empty string means not set.
func (s *ProviderService) Secret(providerType domain.ProviderType, providerName, option string) string {
	return s.config.GetString(secretKey(providerType, providerName, option))
}

func (s *ProviderService) factory(providerType domain.ProviderType) (driven.ProviderFactory, error) {
	factory, ok := s.factories[providerType]
	if !ok {
		return nil, fmt.Errorf("%w: unknown provider type %q", domain.ErrInvalidConfiguration, providerType)
	}
	return factory, nil
}

func (s *ProviderService) saveSecrets(providerType domain.ProviderType, name string, secrets map[string]string) error {
	for option, value := range secrets {
		if value == "" {
			continue
		}
		if err := s.config.Set(secretKey(providerType, name, option), value); err != nil {
			return fmt.Errorf("storing secret %s: %w", option, err)
		}
	}
	return nil
}

func (s *ProviderService) deleteSecrets(providerType domain.ProviderType, name string) {
	factory, err := s.factory(providerType)
	if err != nil {
		return
	}
	for _, option := range factory.SecretOptions() {
		//nolint:errcheck // Leftover secrets are harmless after the instance is gone
		_ = s.config.Delete(secretKey(providerType, name, option))
	}
}

func secretKey(providerType domain.ProviderType, name, option string) string {
	return fmt.Sprintf("secrets.%s.%s.%s", providerType, name, option)
}
