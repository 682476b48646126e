package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func up(ctx context.Context) ComponentHealth       { return ComponentHealth{Status: StatusUp} }
func degraded(ctx context.Context) ComponentHealth { return ComponentHealth{Status: StatusDegraded, Message: "not configured"} }
func down(ctx context.Context) ComponentHealth     { return ComponentHealth{Status: StatusDown, Message: "circuit open"} }

func TestRunAggregatesWorstStatus(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]Check
		want   Status
	}{
		{"no checks", nil, StatusUp},
		{"all up", map[string]Check{"index": up, "database": up}, StatusUp},
		{"one degraded", map[string]Check{"index": up, "redis": degraded}, StatusDegraded},
		{"down wins", map[string]Check{"index": down, "redis": degraded, "database": up}, StatusDown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker(time.Second)
			for name, check := range tt.checks {
				c.Register(name, check)
			}
			report := c.Run(context.Background())
			if report.Status != tt.want {
				t.Errorf("status = %s, want %s", report.Status, tt.want)
			}
			if len(report.Components) != len(tt.checks) {
				t.Errorf("components = %d, want %d", len(report.Components), len(tt.checks))
			}
		})
	}
}

func TestRunTimesOutSlowCheck(t *testing.T) {
	c := NewChecker(20 * time.Millisecond)
	c.Register("slow", func(ctx context.Context) ComponentHealth {
		time.Sleep(500 * time.Millisecond)
		return ComponentHealth{Status: StatusUp}
	})
	start := time.Now()
	report := c.Run(context.Background())
	if elapsed := time.Since(start); elapsed > 300*time.Millisecond {
		t.Errorf("Run took %v, expected it to give up early", elapsed)
	}
	if report.Components["slow"].Status != StatusDown {
		t.Errorf("slow check = %+v, want down", report.Components["slow"])
	}
}

func TestReadyHandler(t *testing.T) {
	tests := []struct {
		name  string
		check Check
		code  int
	}{
		{"up", up, http.StatusOK},
		{"degraded stays ready", degraded, http.StatusOK},
		{"down", down, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker(time.Second)
			c.Register("component", tt.check)
			rec := httptest.NewRecorder()
			c.ReadyHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
			if rec.Code != tt.code {
				t.Errorf("code = %d, want %d", rec.Code, tt.code)
			}
			var report Report
			if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
				t.Fatalf("decoding report: %v", err)
			}
			if _, ok := report.Components["component"]; !ok {
				t.Error("component missing from report")
			}
		})
	}
}

func TestLiveHandler(t *testing.T) {
	c := NewChecker(0)
	c.Register("index", down)
	rec := httptest.NewRecorder()
	c.LiveHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("code = %d, want 200", rec.Code)
	}
}

func TestNames(t *testing.T) {
	c := NewChecker(0)
	c.Register("redis", up)
	c.Register("index", up)
	c.Register("database", up)
	got := c.Names()
	want := []string{"database", "index", "redis"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Names() = %v, want %v", got, want)
		}
	}
}
