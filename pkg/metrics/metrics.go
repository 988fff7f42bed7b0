// Package metrics defines the Prometheus collectors of the search service
// and serves them for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bloomsearch"

type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	SearchQueriesTotal *prometheus.CounterVec
	SearchLatency      *prometheus.HistogramVec
	SearchResultsCount *prometheus.HistogramVec
	SearchVerified     *prometheus.HistogramVec

	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter

	DocsIndexedTotal     *prometheus.CounterVec
	ResetsTotal          prometheus.Counter
	CollectionDocuments  prometheus.Gauge
	CollectionGeneration prometheus.Gauge
	CollectionFillRatio  prometheus.Gauge
}

// New registers every collector with reg, or with the default registerer
// when reg is nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	opts := func(subsystem, name, help string) prometheus.Opts {
		return prometheus.Opts{Namespace: namespace, Subsystem: subsystem, Name: name, Help: help}
	}
	histogram := func(subsystem, name, help string, buckets []float64) prometheus.HistogramOpts {
		return prometheus.HistogramOpts{Namespace: namespace, Subsystem: subsystem, Name: name, Help: help, Buckets: buckets}
	}

	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts(
			opts("http", "requests_total", "HTTP requests by method, route and status.")),
			[]string{"method", "path", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(
			histogram("http", "request_duration_seconds", "HTTP request latency.", prometheus.DefBuckets),
			[]string{"method", "path"}),
		HTTPRequestsInFlight: f.NewGauge(prometheus.GaugeOpts(
			opts("http", "requests_in_flight", "HTTP requests being served."))),

		SearchQueriesTotal: f.NewCounterVec(prometheus.CounterOpts(
			opts("search", "queries_total", "Queries by strategy and outcome (hit, zero_result, empty_collection, error).")),
			[]string{"strategy", "result_type"}),
		SearchLatency: f.NewHistogramVec(
			histogram("search", "latency_seconds", "Query latency including cache lookups.",
				prometheus.ExponentialBuckets(50e-6, 4, 9)),
			[]string{"strategy", "cache_status"}),
		SearchResultsCount: f.NewHistogramVec(
			histogram("search", "results", "Ids returned per query.", []float64{0, 1, 5, 10, 25, 50, 100, 500}),
			[]string{"strategy"}),
		SearchVerified: f.NewHistogramVec(
			histogram("search", "candidates_verified", "Stored filters verified per query.",
				prometheus.ExponentialBuckets(1, 4, 10)),
			[]string{"strategy"}),

		CacheHitsTotal: f.NewCounter(prometheus.CounterOpts(
			opts("cache", "hits_total", "Query results served from the cache."))),
		CacheMissesTotal: f.NewCounter(prometheus.CounterOpts(
			opts("cache", "misses_total", "Queries computed because the cache had no usable entry."))),

		DocsIndexedTotal: f.NewCounterVec(prometheus.CounterOpts(
			opts("collection", "documents_indexed_total", "Documents added by source (http, kafka, postgres).")),
			[]string{"source"}),
		ResetsTotal: f.NewCounter(prometheus.CounterOpts(
			opts("collection", "resets_total", "Collection resets."))),
		CollectionDocuments: f.NewGauge(prometheus.GaugeOpts(
			opts("collection", "documents", "Documents in the current generation."))),
		CollectionGeneration: f.NewGauge(prometheus.GaugeOpts(
			opts("collection", "generation", "Current collection generation."))),
		CollectionFillRatio: f.NewGauge(prometheus.GaugeOpts(
			opts("collection", "filter_fill_ratio", "Mean share of bits set per stored filter."))),
	}
}

// Handler serves g in the Prometheus exposition format; nil means the
// default gatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
