package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestSyncReport_Totals tests counter aggregation across providers
func TestSyncReport_Totals(t *testing.T) {
	report := SyncReport{
		Providers: []ProviderReport{
			{ProviderType: ProviderLocal, ProviderName: "home", Indexed: 5, Removed: 1, Failed: 0},
			{ProviderType: ProviderS3, ProviderName: "archive", Indexed: 3, Removed: 0, Failed: 2},
		},
	}

	assert.Equal(t, 8, report.TotalIndexed())
	assert.Equal(t, 1, report.TotalRemoved())
	assert.Equal(t, 2, report.TotalFailed())
}

// TestSyncReport_HasFailures tests failure detection across providers
func TestSyncReport_HasFailures(t *testing.T) {
	tests := []struct {
		name     string
		report   SyncReport
		expected bool
	}{
		{
			name:     "empty report",
			report:   SyncReport{},
			expected: false,
		},
		{
			name: "clean providers",
			report: SyncReport{Providers: []ProviderReport{
				{Indexed: 3}, {Indexed: 1, Unchanged: 7},
			}},
			expected: false,
		},
		{
			name: "document failure",
			report: SyncReport{Providers: []ProviderReport{
				{Indexed: 3, Failed: 1},
			}},
			expected: true,
		},
		{
			name: "provider-level failure",
			report: SyncReport{Providers: []ProviderReport{
				{Err: "listing documents: provider unavailable"},
			}},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.report.HasFailures())
		})
	}
}

// TestSchedule_Due tests the schedule firing condition
func TestSchedule_Due(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		schedule Schedule
		expected bool
	}{
		{
			name:     "disabled never fires",
			schedule: Schedule{Enabled: false, Interval: time.Minute, LastRun: now.Add(-time.Hour)},
			expected: false,
		},
		{
			name:     "zero interval never fires",
			schedule: Schedule{Enabled: true, Interval: 0, LastRun: now.Add(-time.Hour)},
			expected: false,
		},
		{
			name:     "interval elapsed",
			schedule: Schedule{Enabled: true, Interval: time.Minute, LastRun: now.Add(-2 * time.Minute)},
			expected: true,
		},
		{
			name:     "interval not yet elapsed",
			schedule: Schedule{Enabled: true, Interval: time.Hour, LastRun: now.Add(-time.Minute)},
			expected: false,
		},
		{
			name:     "never run fires immediately",
			schedule: Schedule{Enabled: true, Interval: time.Hour},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.schedule.Due(now))
		})
	}
}
