package driving

import "context"

// Scheduler runs interval-based sync schedules in serve mode.
type Scheduler interface {
	// Start begins evaluating schedules. It returns immediately; the
	// loop runs until Stop or context cancellation.
	Start(ctx context.Context) error

	// Stop halts the loop and waits for an in-flight trigger to finish.
	Stop()
}
