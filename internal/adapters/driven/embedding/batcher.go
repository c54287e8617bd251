// Package embedding provides decorators shared by the embedding adapters.
package embedding

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/trawlhq/trawl/internal/core/domain"
	"github.com/trawlhq/trawl/internal/core/ports/driven"
)

// Ensure Batcher implements the interface.
var _ driven.EmbeddingService = (*Batcher)(nil)

// Default batching behaviour.
const (
	DefaultAttempts          = 3
	DefaultBackoff           = 500 * time.Millisecond
	DefaultRequestsPerSecond = 8
)

// BatcherConfig holds configuration for the batching decorator.
type BatcherConfig struct {
	// BatchSize caps how many texts one upstream request carries
	// (default: 64).
	BatchSize int

	// Attempts is how many times a failing batch is tried before the
	// whole call fails (default: 3).
	Attempts int

	// Backoff is the wait after the first failed attempt; it doubles
	// on each further attempt (default: 500ms).
	Backoff time.Duration

	// RequestsPerSecond throttles upstream requests (default: 8).
	RequestsPerSecond float64
}

// Batcher wraps an embedding service with sub-batching, request
// throttling and retries so callers can hand over arbitrarily large
// inputs. Calls stay all-or-nothing: one exhausted batch fails the
// whole call and nothing partial is returned.
type Batcher struct {
	inner     driven.EmbeddingService
	limiter   *rate.Limiter
	batchSize int
	attempts  int
	backoff   time.Duration
}

// NewBatcher wraps inner with batching behaviour.
func NewBatcher(inner driven.EmbeddingService, cfg BatcherConfig) *Batcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = domain.DefaultBatchSize
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = DefaultAttempts
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultRequestsPerSecond
	}

	return &Batcher{
		inner:     inner,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		batchSize: cfg.BatchSize,
		attempts:  cfg.Attempts,
		backoff:   cfg.Backoff,
	}
}

// Embed generates a vector embedding for the given text.
func (b *Batcher) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := b.embedWithRetry(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingFailed, err)
	}
	return vectors[0], nil
}

// EmbedBatch splits texts into provider-sized sub-batches and embeds
// them in order.
func (b *Batcher) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += b.batchSize {
		end := start + b.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		vectors, err := b.embedWithRetry(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("%w: texts %d-%d: %w", domain.ErrEmbeddingFailed, start, end-1, err)
		}
		out = append(out, vectors...)
	}

	return out, nil
}

// embedWithRetry embeds one sub-batch, retrying with exponential
// backoff on failure.
func (b *Batcher) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 1; attempt <= b.attempts; attempt++ {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		vectors, err := b.inner.EmbedBatch(ctx, texts)
		if err == nil {
			// A short result would silently shift every following
			// chunk onto the wrong vector, so treat it as fatal.
			if len(vectors) != len(texts) {
				return nil, fmt.Errorf("got %d embeddings for %d texts", len(vectors), len(texts))
			}
			return vectors, nil
		}
		lastErr = err

		if attempt == b.attempts {
			break
		}

		wait := b.backoff << (attempt - 1)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}

	return nil, fmt.Errorf("%d attempts: %w", b.attempts, lastErr)
}

// Dimensions returns the embedding vector size.
func (b *Batcher) Dimensions() int {
	return b.inner.Dimensions()
}

// ModelName returns the name of the embedding model being used.
func (b *Batcher) ModelName() string {
	return b.inner.ModelName()
}

// Ping validates the wrapped service is reachable.
func (b *Batcher) Ping(ctx context.Context) error {
	return b.inner.Ping(ctx)
}

// Close releases the wrapped service's resources.
func (b *Batcher) Close() error {
	return b.inner.Close()
}
