package main

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPercentile(t *testing.T) {
	sorted := make([]time.Duration, 100)
	for i := range sorted {
		sorted[i] = time.Duration(i+1) * time.Millisecond
	}
	tests := []struct {
		p    float64
		want time.Duration
	}{
		{50, 50 * time.Millisecond},
		{99, 99 * time.Millisecond},
		{100, 100 * time.Millisecond},
		{0, 1 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := percentile(sorted, tt.p); got != tt.want {
			t.Errorf("percentile(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
	if got := percentile(nil, 50); got != 0 {
		t.Errorf("percentile(nil) = %v, want 0", got)
	}
}

func TestRecordRequest(t *testing.T) {
	s := NewStats()
	s.RecordRequest(time.Millisecond, 200, 3, nil)
	s.RecordRequest(time.Millisecond, 200, 0, nil)
	s.RecordRequest(time.Millisecond, 503, 0, nil)
	s.RecordRequest(time.Millisecond, 0, 0, fmt.Errorf("connection refused"))

	if s.totalRequests.Load() != 4 || s.successCount.Load() != 2 || s.errorCount.Load() != 2 {
		t.Errorf("total=%d success=%d errors=%d", s.totalRequests.Load(), s.successCount.Load(), s.errorCount.Load())
	}
	if s.zeroResults.Load() != 1 {
		t.Errorf("zero results = %d, want 1", s.zeroResults.Load())
	}
	if s.statusCodes[200] != 2 || s.statusCodes[503] != 1 {
		t.Errorf("status codes = %v", s.statusCodes)
	}
}

func TestRunLoadTest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/search" || r.URL.Query().Get("q") == "" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"results":[{"id":"7","title":"Cat"}]}`)
	}))
	defer srv.Close()

	stats := runLoadTest(Config{
		BaseURL:     srv.URL,
		Concurrency: 2,
		Duration:    100 * time.Millisecond,
		Queries:     defaultQueries,
	})
	if stats.successCount.Load() == 0 {
		t.Fatal("no successful requests")
	}
	if stats.errorCount.Load() != 0 || stats.zeroResults.Load() != 0 {
		t.Errorf("errors=%d zero=%d, want 0", stats.errorCount.Load(), stats.zeroResults.Load())
	}
}

func TestReadQueries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "q.txt")
	if err := os.WriteFile(path, []byte("cat dog\n\n  black hole \n"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := readQueries(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[1] != "black hole" {
		t.Errorf("queries = %q", got)
	}

	empty := filepath.Join(t.TempDir(), "empty.txt")
	os.WriteFile(empty, nil, 0644)
	if _, err := readQueries(empty); err == nil {
		t.Error("expected error for empty file")
	}
}
