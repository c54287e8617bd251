package mcp

import (
	"context"

	"github.com/trawlhq/trawl/internal/core/domain"
)

// mockSearcher is a mock implementation of driving.Searcher.
type mockSearcher struct {
	results   []domain.SearchResult
	err       error
	lastQuery string
	lastOpts  domain.SearchOptions
}

func (m *mockSearcher) Search(
	_ context.Context,
	query string,
	opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	m.lastQuery = query
	m.lastOpts = opts
	return m.results, m.err
}

// mockAsker is a mock implementation of driving.Asker.
type mockAsker struct {
	answer       *domain.Answer
	err          error
	lastQuestion string
	lastTopK     int
}

func (m *mockAsker) Ask(_ context.Context, question string, topK int) (*domain.Answer, error) {
	m.lastQuestion = question
	m.lastTopK = topK
	return m.answer, m.err
}

// mockProviderManager is a mock implementation of driving.ProviderManager.
type mockProviderManager struct {
	instances []domain.ProviderInstance
	err       error
}

func (m *mockProviderManager) Add(_ context.Context, _ domain.ProviderInstance, _ map[string]string) error {
	return m.err
}

func (m *mockProviderManager) List(_ context.Context) ([]domain.ProviderInstance, error) {
	return m.instances, m.err
}

func (m *mockProviderManager) Remove(_ context.Context, _ domain.ProviderType, _ string) error {
	return m.err
}

func (m *mockProviderManager) SetEnabled(_ context.Context, _ domain.ProviderType, _ string, _ bool) error {
	return m.err
}

func (m *mockProviderManager) Probe(_ context.Context, _ domain.ProviderType, _ string) (domain.ProbeResult, error) {
	return domain.ProbeResult{}, m.err
}

func (m *mockProviderManager) SecretOptions(_ domain.ProviderType) ([]string, error) {
	return nil, m.err
}

// mockTracking is a mock implementation of TrackingReader.
type mockTracking struct {
	records  []domain.TrackingRecord
	err      error
	lastType domain.ProviderType
	lastName string
}

func (m *mockTracking) ListTracking(
	_ context.Context,
	providerType domain.ProviderType,
	providerName string,
) ([]domain.TrackingRecord, error) {
	m.lastType = providerType
	m.lastName = providerName
	return m.records, m.err
}
