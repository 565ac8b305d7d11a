package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestInMemoryRecorder(t *testing.T) {
	t.Parallel()

	m := NewInMemory()
	m.RecordAuth(OutcomeSuccess)
	m.RecordAuth("revoked")
	m.RecordAuth("revoked")
	m.RecordSearch(OutcomeSuccess, 20*time.Millisecond, 3)
	m.RecordSearch(OutcomeSuccess, 10*time.Millisecond, 2)
	m.RecordIngest(OutcomeFailed)
	m.RecordUpstreamError("timeout")

	snap := m.Snapshot()
	if snap.Auth["revoked"] != 2 || snap.Auth[OutcomeSuccess] != 1 {
		t.Errorf("Auth = %v", snap.Auth)
	}
	if snap.Search[OutcomeSuccess] != 2 || snap.SearchResults != 5 || snap.SearchTotalTime != 30*time.Millisecond {
		t.Errorf("Search = %v results=%d time=%s", snap.Search, snap.SearchResults, snap.SearchTotalTime)
	}
	if snap.Ingest[OutcomeFailed] != 1 || snap.Upstream["timeout"] != 1 {
		t.Errorf("Ingest = %v Upstream = %v", snap.Ingest, snap.Upstream)
	}

	// Snapshots are copies.
	snap.Auth["revoked"] = 100
	if m.Snapshot().Auth["revoked"] != 2 {
		t.Error("snapshot mutation leaked into recorder")
	}
}

func TestPrometheusRecorder_Exposition(t *testing.T) {
	t.Parallel()

	p := NewPrometheus()
	p.RecordAuth("expired")
	p.RecordSearch(OutcomeSuccess, 50*time.Millisecond, 4)
	p.RecordIngest(OutcomeSuccess)
	p.RecordUpstreamError("index_unavailable")

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`photovault_auth_decisions_total{outcome="expired"} 1`,
		`photovault_searches_total{outcome="success"} 1`,
		`photovault_ingest_jobs_total{outcome="success"} 1`,
		`photovault_upstream_errors_total{kind="index_unavailable"} 1`,
		`photovault_search_duration_seconds_count 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

func TestNoopRecorder(t *testing.T) {
	t.Parallel()

	var r Recorder = NewNoop()
	r.RecordAuth(OutcomeSuccess)
	r.RecordSearch(OutcomeFailed, time.Second, 0)
	r.RecordIngest(OutcomeSuccess)
	r.RecordUpstreamError("timeout")
}
