package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRecorderCollectsAndServes(t *testing.T) {
	r := NewRecorder(Config{Namespace: "test"})

	r.ScanCompleted("red", 88, 3*time.Second)
	r.ScanCompleted("green", 10, time.Second)
	r.SourceCompleted("media", "success", 500*time.Millisecond)
	r.SourceCompleted("vulnerability", "failed", 2*time.Second)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	for _, want := range []string{
		`test_scans_total{light="red"} 1`,
		`test_scans_total{light="green"} 1`,
		`test_source_failures_total{source="vulnerability"} 1`,
		"test_overall_score_bucket",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	r.ScanCompleted("green", 0, 0)
	r.SourceCompleted("media", "failed", 0)
	if r.Registry() != nil {
		t.Error("nil recorder returned a registry")
	}
}
