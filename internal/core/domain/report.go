package domain

import "time"

// SyncStage identifies where in the pipeline a document failed.
type SyncStage string

// Pipeline stages, in processing order.
const (
	StageList     SyncStage = "list"
	StageDownload SyncStage = "download"
	StageExtract  SyncStage = "extract"
	StageChunk    SyncStage = "chunk"
	StageEmbed    SyncStage = "embed"
	StageStore    SyncStage = "store"
	StageCleanup  SyncStage = "cleanup"
)

// DocumentFailure records one document that could not be processed.
// Failures are data, not control flow: the run continues past them.
type DocumentFailure struct {
	// DocumentID is the provider-scoped id of the failed document.
	DocumentID string

	// Filename is the document's base name, for readable reports.
	Filename string

	// Stage is the pipeline stage that failed.
	Stage SyncStage

	// Reason is the error text.
	Reason string
}

// ProviderReport summarises one provider instance's part of a sync run.
type ProviderReport struct {
	// ProviderType identifies the provider implementation.
	ProviderType ProviderType

	// ProviderName is the configured instance name.
	ProviderName string

	// Listed is how many documents the provider returned.
	Listed int

	// Indexed is how many documents were (re-)indexed this run.
	Indexed int

	// Unchanged is how many documents were skipped as already current.
	Unchanged int

	// Skipped is how many documents had no registered extractor.
	Skipped int

	// Removed is how many orphaned documents were purged from the index.
	Removed int

	// Failed is how many documents failed a pipeline stage.
	Failed int

	// Failures details each failed document.
	Failures []DocumentFailure

	// Err is set when the provider itself failed (listing error). When
	// set, no documents were touched and no orphans were removed.
	Err string

	// Duration is the wall-clock time spent on this provider.
	Duration time.Duration
}

// HasFailures reports whether the provider had any document or listing failure.
func (r ProviderReport) HasFailures() bool {
	return r.Err != "" || r.Failed > 0
}

// SyncReport is the outcome of one sync run across all selected providers.
type SyncReport struct {
	// RunID uniquely identifies the run.
	RunID string

	// StartedAt and FinishedAt bound the run.
	StartedAt  time.Time
	FinishedAt time.Time

	// Providers holds one report per provider instance, in run order.
	Providers []ProviderReport
}

// TotalIndexed sums indexed documents across providers.
func (r *SyncReport) TotalIndexed() int {
	n := 0
	for _, p := range r.Providers {
		n += p.Indexed
	}
	return n
}

// TotalRemoved sums removed documents across providers.
func (r *SyncReport) TotalRemoved() int {
	n := 0
	for _, p := range r.Providers {
		n += p.Removed
	}
	return n
}

// TotalFailed sums failed documents across providers.
func (r *SyncReport) TotalFailed() int {
	n := 0
	for _, p := range r.Providers {
		n += p.Failed
	}
	return n
}

// HasFailures reports whether any provider recorded a failure. A report
// with failures still exits successfully; failures are surfaced, not
// escalated.
func (r *SyncReport) HasFailures() bool {
	for _, p := range r.Providers {
		if p.HasFailures() {
			return true
		}
	}
	return false
}

// Duration returns the total run time.
func (r *SyncReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
