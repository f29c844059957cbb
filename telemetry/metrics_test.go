package telemetry

import (
	"context"
	"testing"
	"time"
)

func TestInitIdempotent(t *testing.T) {
	Init()
	Init() // must not panic on duplicate registration
	if CacheHits == nil || UpstreamFetches == nil || ResolveDuration == nil {
		t.Fatal("metrics not initialized")
	}
}

func TestCountFetchAndGauges(t *testing.T) {
	Init()
	CountFetch("watch_html") // must not panic
	SetCacheSize(3)
	SetLiveViewers("UCabc", 1234)
	SetLiveViewers("UCabc", -1) // clears series
}

func TestTimeFunc(t *testing.T) {
	Init()
	d := TimeFunc(ResolveDuration, func() { time.Sleep(5 * time.Millisecond) })
	if d < 5*time.Millisecond {
		t.Errorf("duration %v too short", d)
	}
	// nil observer is allowed
	if d := TimeFunc(nil, func() {}); d < 0 {
		t.Errorf("negative duration %v", d)
	}
}

func TestCorrelation(t *testing.T) {
	ctx := context.Background()
	if got := GetCorrelation(ctx); got != "" {
		t.Errorf("GetCorrelation on empty ctx = %q", got)
	}
	ctx = WithCorrelation(ctx, "abc-123")
	if got := GetCorrelation(ctx); got != "abc-123" {
		t.Errorf("GetCorrelation = %q, want abc-123", got)
	}
	if l := LoggerWithCorr(ctx); l == nil {
		t.Error("LoggerWithCorr returned nil")
	}
}
