package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordHelpersIncrementCounters(t *testing.T) {
	tests := []struct {
		name    string
		counter func() prometheus.Counter
		record  func()
		want    float64
	}{
		{
			name:    "meets crawled",
			counter: func() prometheus.Counter { return globalManager.meetsCrawled },
			record:  func() { RecordMeetCrawled(); RecordMeetCrawled() },
			want:    2,
		},
		{
			name:    "meets failed",
			counter: func() prometheus.Counter { return globalManager.meetsFailed },
			record:  func() { RecordMeetFailed() },
			want:    1,
		},
		{
			name:    "events extracted",
			counter: func() prometheus.Counter { return globalManager.eventsExtracted },
			record:  func() { RecordEventsExtracted(14) },
			want:    14,
		},
		{
			name:    "events skipped",
			counter: func() prometheus.Counter { return globalManager.eventsSkipped },
			record:  func() { RecordEventsSkipped(3) },
			want:    3,
		},
		{
			name:    "pages fetched",
			counter: func() prometheus.Counter { return globalManager.pagesFetched },
			record:  func() { RecordPageFetched() },
			want:    1,
		},
		{
			name:    "cache hits",
			counter: func() prometheus.Counter { return globalManager.cacheHits },
			record:  func() { RecordCacheHit() },
			want:    1,
		},
		{
			name: "http requests",
			counter: func() prometheus.Counter {
				return globalManager.httpRequests.WithLabelValues("/api/crawl", "POST", "202")
			},
			record: func() { RecordHTTPRequest("/api/crawl", "POST", "202") },
			want:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(tt.counter())
			tt.record()
			after := testutil.ToFloat64(tt.counter())

			if got := after - before; got != tt.want {
				t.Errorf("delta = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSetActiveJobs(t *testing.T) {
	SetActiveJobs(4)
	if got := testutil.ToFloat64(globalManager.activeJobs); got != 4 {
		t.Errorf("active jobs = %v, want 4", got)
	}
	SetActiveJobs(0)
	if got := testutil.ToFloat64(globalManager.activeJobs); got != 0 {
		t.Errorf("active jobs after reset = %v, want 0", got)
	}
}

func TestNewManagerOnFreshRegistry(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewManager(WithNamespace("probe"), WithRegistry(registry))
	if m == nil {
		t.Fatal("NewManager returned nil")
	}

	m.meetsCrawled.Inc()
	m.crawlDuration.Observe(12.5)

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	for _, want := range []string{"probe_meets_crawled_total", "probe_meet_crawl_duration_seconds", "probe_active_jobs"} {
		if !names[want] {
			t.Errorf("registry missing %s", want)
		}
	}
}

func TestOptionsIgnoreZeroValues(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewManager(WithNamespace(""), WithRegistry(nil), WithRegistry(registry))
	if m.namespace != "heatsheet" {
		t.Errorf("namespace = %q, want default kept", m.namespace)
	}
	if m.registry != registry {
		t.Error("nil registry option overrode a real one")
	}
}

func TestHandlerServesExposition(t *testing.T) {
	RecordMeetCrawled()

	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))

	if rr.Code != 200 {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if body := rr.Body.String(); !strings.Contains(body, "heatsheet_meets_crawled_total") {
		t.Error("exposition missing heatsheet_meets_crawled_total")
	}
}
