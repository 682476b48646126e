package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/wikisearch/pkg/kafka"
)

type recordingPublisher struct {
	mu      sync.Mutex
	batches [][]kafka.Event
}

func (p *recordingPublisher) PublishBatch(ctx context.Context, events []kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, append([]kafka.Event(nil), events...))
	return nil
}

func (p *recordingPublisher) total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, b := range p.batches {
		n += len(b)
	}
	return n
}

func TestCollectorBatchesAndFlushesOnClose(t *testing.T) {
	pub := &recordingPublisher{}
	agg := NewAggregator()
	c := NewCollector(pub, CollectorOptions{BatchSize: 2, FlushInterval: time.Hour, Aggregator: agg})
	c.Start(context.Background())

	for i := 0; i < 5; i++ {
		c.Track(SearchEvent{Type: EventSearch, Terms: []string{"cat"}, Returned: 1})
	}
	c.Close()

	if got := pub.total(); got != 5 {
		t.Errorf("published %d events, want 5", got)
	}
	if len(pub.batches) != 3 {
		t.Errorf("published %d batches, want 3 (2+2+1)", len(pub.batches))
	}
	if got := agg.Stats().TotalSearches; got != 5 {
		t.Errorf("aggregated %d searches, want 5", got)
	}

	// Track after Close is a no-op, not a panic.
	c.Track(SearchEvent{Type: EventSearch})
}

func TestCollectorWithoutPublisher(t *testing.T) {
	agg := NewAggregator()
	c := NewCollector(nil, CollectorOptions{Aggregator: agg})
	c.Start(context.Background())
	c.Track(SearchEvent{Type: EventZeroResult, Terms: []string{"zebra"}})
	c.Close()

	if got := agg.Stats().ZeroResultCount; got != 1 {
		t.Errorf("zero results = %d, want 1", got)
	}
}

func TestCollectorStopsOnContextCancel(t *testing.T) {
	pub := &recordingPublisher{}
	ctx, cancel := context.WithCancel(context.Background())
	c := NewCollector(pub, CollectorOptions{BatchSize: 100, FlushInterval: time.Hour})
	c.Start(ctx)
	c.Track(SearchEvent{Type: EventSearch})
	c.Track(SearchEvent{Type: EventSearch})
	cancel()

	select {
	case <-c.done:
	case <-time.After(2 * time.Second):
		t.Fatal("collector did not stop")
	}
	if got := pub.total(); got != 2 {
		t.Errorf("published %d events, want 2", got)
	}
}

func TestAggregatorStats(t *testing.T) {
	agg := NewAggregator()
	events := []SearchEvent{
		{Type: EventSearch, Terms: []string{"cat"}, Returned: 3, LatencyMs: 10},
		{Type: EventSearch, Terms: []string{"cat"}, Returned: 3, LatencyMs: 20, CacheHit: true},
		{Type: EventSearch, Terms: []string{"dog"}, Returned: 1, LatencyMs: 30},
		{Type: EventZeroResult, Terms: []string{"zebra"}, Returned: 0, LatencyMs: 40},
		{Type: EventError, Query: "cat", LatencyMs: 500},
	}
	for _, e := range events {
		agg.Record(e)
	}

	stats := agg.Stats()
	if stats.TotalSearches != 5 || stats.ErrorCount != 1 {
		t.Errorf("total=%d errors=%d, want 5 and 1", stats.TotalSearches, stats.ErrorCount)
	}
	if stats.CacheHits != 1 || stats.CacheMisses != 3 {
		t.Errorf("hits=%d misses=%d, want 1 and 3", stats.CacheHits, stats.CacheMisses)
	}
	if stats.AvgLatencyMs != 25 {
		t.Errorf("avg latency = %v, want 25", stats.AvgLatencyMs)
	}
	if len(stats.TopQueries) == 0 || stats.TopQueries[0] != (QueryCount{"cat", 2}) {
		t.Errorf("top queries = %+v", stats.TopQueries)
	}
	if len(stats.ZeroResultQueries) != 1 || stats.ZeroResultQueries[0].Query != "zebra" {
		t.Errorf("zero result queries = %+v", stats.ZeroResultQueries)
	}
}

func TestAggregatorLatencyWindowBounded(t *testing.T) {
	agg := NewAggregator()
	for i := 0; i < maxLatencySamples+500; i++ {
		agg.Record(SearchEvent{Type: EventSearch, Returned: 1, LatencyMs: int64(i)})
	}
	if len(agg.latencies) != maxLatencySamples {
		t.Errorf("kept %d samples, want %d", len(agg.latencies), maxLatencySamples)
	}
}

func TestHandlerStats(t *testing.T) {
	agg := NewAggregator()
	agg.Record(SearchEvent{Type: EventSearch, Terms: []string{"cat"}, Returned: 1})

	rec := httptest.NewRecorder()
	NewHandler(agg).Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var stats AggregatedStats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if stats.TotalSearches != 1 {
		t.Errorf("total searches = %d, want 1", stats.TotalSearches)
	}
}

func TestHandlerStatsTop(t *testing.T) {
	agg := NewAggregator()
	for _, term := range []string{"cat", "cat", "dog", "owl"} {
		agg.Record(SearchEvent{Type: EventSearch, Terms: []string{term}, Returned: 1})
	}
	h := NewHandler(agg)

	rec := httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/stats?top=1", nil))
	var stats AggregatedStats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if len(stats.TopQueries) != 1 || stats.TopQueries[0].Query != "cat" {
		t.Errorf("top queries = %+v, want only cat", stats.TopQueries)
	}

	for _, bad := range []string{"0", "101", "many"} {
		rec := httptest.NewRecorder()
		h.Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/stats?top="+bad, nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("top=%s status = %d, want 400", bad, rec.Code)
		}
	}
}
