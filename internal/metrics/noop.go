package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// RecordAuth is a no-op.
func (n *NoopRecorder) RecordAuth(string) {}

// RecordSearch is a no-op.
func (n *NoopRecorder) RecordSearch(string, time.Duration, int) {}

// RecordIngest is a no-op.
func (n *NoopRecorder) RecordIngest(string) {}

// RecordUpstreamError is a no-op.
func (n *NoopRecorder) RecordUpstreamError(string) {}
