package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
// Make fields public so they can be accessed from other packages.
type AppMetrics struct {
	EnrichmentRequestsTotal   metric.Int64Counter
	EnrichmentDurationSeconds metric.Float64Histogram
	UpstreamRequestsTotal     metric.Int64Counter
	UpstreamErrorsTotal       metric.Int64Counter
	ResponseCacheHitsTotal    metric.Int64Counter
}

var (
	// Global instance of AppMetrics (initialized once)
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the global metrics instruments ONLY ONCE.
// It gets the Meter from the globally configured MeterProvider.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("LandmarkInfo")
		var err error
		m := &AppMetrics{}

		m.EnrichmentRequestsTotal, err = meter.Int64Counter(
			"enrichment_requests_total",
			metric.WithDescription("Total number of enrichment requests completed, by outcome"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create enrichment_requests_total: %v", err)
		}

		m.EnrichmentDurationSeconds, err = meter.Float64Histogram(
			"enrichment_duration_seconds",
			metric.WithDescription("Duration of enrichment requests in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create enrichment_duration_seconds: %v", err)
		}

		m.UpstreamRequestsTotal, err = meter.Int64Counter(
			"upstream_requests_total",
			metric.WithDescription("Outbound requests to upstream knowledge sources, by source"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create upstream_requests_total: %v", err)
		}

		m.UpstreamErrorsTotal, err = meter.Int64Counter(
			"upstream_errors_total",
			metric.WithDescription("Upstream calls degraded to unknown fragments, by source"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create upstream_errors_total: %v", err)
		}

		m.ResponseCacheHitsTotal, err = meter.Int64Counter(
			"response_cache_hits_total",
			metric.WithDescription("Outbound responses served from the HTTP cache"),
			metric.WithUnit("{hit}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create response_cache_hits_total: %v", err)
		}

		appMetrics = m
	})
}

// Get returns the global AppMetrics, initializing lazily so tests that never
// configure a meter provider still get working no-op instruments.
func Get() *AppMetrics {
	if appMetrics == nil {
		InitAppMetrics()
	}
	return appMetrics
}
