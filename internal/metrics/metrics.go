// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Outcome labels shared by recorders.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
)

// Recorder captures metric events for the application.
// Implementations expose these to Prometheus or keep them in memory for tests.
type Recorder interface {
	// RecordAuth counts gateway decisions: success, missing, invalid,
	// expired, revoked or unavailable.
	RecordAuth(outcome string)

	// RecordSearch observes one search: success, empty_query or failed.
	RecordSearch(outcome string, duration time.Duration, results int)

	// RecordIngest counts caption indexing jobs: success, failed or dead_letter.
	RecordIngest(outcome string)

	// RecordUpstreamError counts embedding and index failures by kind.
	RecordUpstreamError(kind string)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
