package metrics

import (
	"sync"
	"time"
)

// Snapshot captures current in-memory counters keyed by outcome or kind.
type Snapshot struct {
	Auth            map[string]uint64
	Search          map[string]uint64
	SearchResults   uint64
	SearchTotalTime time.Duration
	Ingest          map[string]uint64
	Upstream        map[string]uint64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	mu   sync.Mutex
	snap Snapshot
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{snap: Snapshot{
		Auth:     map[string]uint64{},
		Search:   map[string]uint64{},
		Ingest:   map[string]uint64{},
		Upstream: map[string]uint64{},
	}}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		Auth:            copyCounts(m.snap.Auth),
		Search:          copyCounts(m.snap.Search),
		SearchResults:   m.snap.SearchResults,
		SearchTotalTime: m.snap.SearchTotalTime,
		Ingest:          copyCounts(m.snap.Ingest),
		Upstream:        copyCounts(m.snap.Upstream),
	}
}

// RecordAuth increments the auth counter for outcome.
func (m *InMemoryRecorder) RecordAuth(outcome string) {
	m.mu.Lock()
	m.snap.Auth[outcome]++
	m.mu.Unlock()
}

// RecordSearch increments the search counter and accumulates totals.
func (m *InMemoryRecorder) RecordSearch(outcome string, duration time.Duration, results int) {
	m.mu.Lock()
	m.snap.Search[outcome]++
	m.snap.SearchResults += uint64(results)
	m.snap.SearchTotalTime += duration
	m.mu.Unlock()
}

// RecordIngest increments the ingest counter for outcome.
func (m *InMemoryRecorder) RecordIngest(outcome string) {
	m.mu.Lock()
	m.snap.Ingest[outcome]++
	m.mu.Unlock()
}

// RecordUpstreamError increments the upstream error counter for kind.
func (m *InMemoryRecorder) RecordUpstreamError(kind string) {
	m.mu.Lock()
	m.snap.Upstream[kind]++
	m.mu.Unlock()
}

func copyCounts(in map[string]uint64) map[string]uint64 {
	out := make(map[string]uint64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
