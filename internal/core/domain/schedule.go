package domain

import "time"

// Schedule is a recurring sync trigger evaluated by the serve-mode
// scheduler. One schedule covers either the whole provider set or a
// single instance.
type Schedule struct {
	// ID is the unique identifier for the schedule.
	ID string

	// ProviderType restricts the schedule to one provider type.
	// Empty means all enabled providers.
	ProviderType ProviderType

	// ProviderName restricts the schedule to one instance. Only
	// meaningful together with ProviderType.
	ProviderName string

	// Interval defines how often the sync should run.
	Interval time.Duration

	// LastRun is when the schedule last fired.
	LastRun time.Time

	// LastError contains the last run's fatal error text, if any.
	LastError string

	// Enabled indicates whether the schedule is active.
	Enabled bool
}

// Due reports whether the schedule should fire at the given instant.
func (s Schedule) Due(now time.Time) bool {
	if !s.Enabled || s.Interval <= 0 {
		return false
	}
	return now.Sub(s.LastRun) >= s.Interval
}
