package services

import (
	"github.com/trawlhq/trawl/internal/core/domain"
)

// listingDiff is the outcome of comparing a provider listing against the
// tracking records from the previous run.
type listingDiff struct {
	// changed holds documents that are new or whose version info differs
	// from the tracked state. They need the full indexing pipeline.
	changed []domain.Document
	// unchanged counts documents whose etag and modification time both
	// match the tracked state.
	unchanged int
	// orphans holds tracking records with no corresponding document in
	// the listing. Their chunks and tracking must be removed.
	orphans []domain.TrackingRecord
}

// diffListing classifies every listed document as changed or unchanged and
// every tracked-but-unlisted document as an orphan. Listing order is
// preserved for changed documents; orphans follow tracking-store order.
func diffListing(listed []domain.Document, tracked []domain.TrackingRecord) listingDiff {
	trackedByKey := make(map[domain.DocumentKey]domain.TrackingRecord, len(tracked))
	for _, rec := range tracked {
		trackedByKey[rec.Key()] = rec
	}

	var diff listingDiff
	seen := make(map[domain.DocumentKey]struct{}, len(listed))
	for _, doc := range listed {
		key := doc.Key()
		seen[key] = struct{}{}

		rec, ok := trackedByKey[key]
		if ok && !needsReindex(doc, rec) {
			diff.unchanged++
			continue
		}
		diff.changed = append(diff.changed, doc)
	}

	for _, rec := range tracked {
		if _, ok := seen[rec.Key()]; !ok {
			diff.orphans = append(diff.orphans, rec)
		}
	}
	return diff
}

// needsReindex reports whether the listed document differs from its tracked
// state. A document with no version info at all is always re-indexed; a
// mismatch on either etag or modification time is enough to re-index.
func needsReindex(doc domain.Document, rec domain.TrackingRecord) bool {
	if !doc.HasVersionInfo() {
		return true
	}
	if doc.ETag != "" && doc.ETag != rec.ETag {
		return true
	}
	if !doc.LastModified.IsZero() && !doc.LastModified.Equal(rec.LastModified) {
		return true
	}
	return false
}
