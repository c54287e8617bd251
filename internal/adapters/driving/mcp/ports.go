package mcp

import (
	"context"

	"github.com/trawlhq/trawl/internal/core/domain"
	"github.com/trawlhq/trawl/internal/core/ports/driving"
)

// TrackingReader is the slice of the index store the documents resource
// reads. The full store interface carries write methods the MCP surface
// must never touch.
type TrackingReader interface {
	ListTracking(ctx context.Context, providerType domain.ProviderType, providerName string) ([]domain.TrackingRecord, error)
}

// Ports aggregates the driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Search answers semantic queries against the index.
	Search driving.Searcher

	// Ask generates grounded answers. Optional; without it the ask tool
	// is not registered.
	Ask driving.Asker

	// Providers lists configured provider instances. Optional.
	Providers driving.ProviderManager

	// Tracking lists the documents indexed per provider. Optional.
	Tracking TrackingReader
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearcher
	}
	// Ask, Providers and Tracking degrade gracefully when absent
	return nil
}
