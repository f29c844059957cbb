// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	UpstreamFetches      *prometheus.CounterVec // labeled by kind: live_redirect, channel_html, watch_html, data_api
	UpstreamErrors       prometheus.Counter
	CacheHits            prometheus.Counter
	CacheStaleServed     prometheus.Counter
	LiveResolved         prometheus.Counter
	NotLiveResolved      prometheus.Counter
	InvalidIdentifiers   prometheus.Counter
	ViewerExtractionMiss prometheus.Counter
	BatchCycles          prometheus.Counter

	// Histograms (seconds)
	ResolveDuration prometheus.Observer

	// Gauges
	CacheSizeGauge prometheus.Gauge
	LiveViewers    *prometheus.GaugeVec // labeled by channel id
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		UpstreamFetches = promauto.NewCounterVec(prometheus.CounterOpts{Name: "streamlens_upstream_fetches_total", Help: "Upstream platform fetches by kind"}, []string{"kind"})
		UpstreamErrors = promauto.NewCounter(prometheus.CounterOpts{Name: "streamlens_upstream_errors_total", Help: "Upstream fetch failures (network or non-2xx)"})
		CacheHits = promauto.NewCounter(prometheus.CounterOpts{Name: "streamlens_cache_hits_total", Help: "Lookups served from fresh cache"})
		CacheStaleServed = promauto.NewCounter(prometheus.CounterOpts{Name: "streamlens_cache_stale_served_total", Help: "Lookups served from expired cache after upstream failure"})
		LiveResolved = promauto.NewCounter(prometheus.CounterOpts{Name: "streamlens_live_resolved_total", Help: "Channel resolutions that found a live broadcast"})
		NotLiveResolved = promauto.NewCounter(prometheus.CounterOpts{Name: "streamlens_not_live_total", Help: "Channel resolutions that found no live broadcast"})
		InvalidIdentifiers = promauto.NewCounter(prometheus.CounterOpts{Name: "streamlens_invalid_identifiers_total", Help: "Lookups rejected upstream as malformed identifiers"})
		ViewerExtractionMiss = promauto.NewCounter(prometheus.CounterOpts{Name: "streamlens_viewer_extraction_miss_total", Help: "Live videos where no viewer count could be extracted"})
		BatchCycles = promauto.NewCounter(prometheus.CounterOpts{Name: "streamlens_batch_cycles_total", Help: "Batch resolution cycles"})
		ResolveDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "streamlens_resolve_duration_seconds", Help: "Full channel resolution duration seconds", Buckets: prometheus.DefBuckets})
		CacheSizeGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "streamlens_cache_entries", Help: "Current number of cache entries"})
		LiveViewers = promauto.NewGaugeVec(prometheus.GaugeOpts{Name: "streamlens_live_viewers", Help: "Last observed concurrent viewers per channel"}, []string{"channel"})
	})
}

// CountFetch increments the upstream fetch counter for a kind if metrics are initialized.
func CountFetch(kind string) {
	if UpstreamFetches != nil {
		UpstreamFetches.WithLabelValues(kind).Inc()
	}
}

// SetCacheSize records the current cache entry count.
func SetCacheSize(n int) {
	if CacheSizeGauge != nil {
		CacheSizeGauge.Set(float64(n))
	}
}

// SetLiveViewers records the last observed viewer count for a channel.
// A negative value clears the series (channel offline or count unknown).
func SetLiveViewers(channel string, viewers int64) {
	if LiveViewers == nil {
		return
	}
	if viewers < 0 {
		LiveViewers.DeleteLabelValues(channel)
		return
	}
	LiveViewers.WithLabelValues(channel).Set(float64(viewers))
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding correlation id (if absent) and the id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
