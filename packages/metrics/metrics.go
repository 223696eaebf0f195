// Package metrics
package metrics

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FetchRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_fetch_requests_total",
			Help: "Total fetch attempts, labeled by outcome (ok, blocked, network_error).",
		},
		[]string{"outcome"},
	)
	SessionResets = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "harvester_session_resets_total",
			Help: "Total full fetcher session resets triggered by block responses.",
		},
	)
	FetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "harvester_fetch_duration_seconds",
			Help:    "Duration of source page fetches in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
	ItemsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_items_total",
			Help: "Total source items finished, labeled by result (processed, failed, unchanged).",
		},
		[]string{"result"},
	)
	PendingItems = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "harvester_pending_items",
			Help: "Number of source items currently eligible for claiming.",
		},
	)
	TotalItems = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "harvester_source_items",
			Help: "Total number of rows in the source_map table.",
		},
	)
	TranslationRepairs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_translation_repairs_total",
			Help: "Structured-output repair attempts, labeled by outcome (repaired, fallback).",
		},
		[]string{"outcome"},
	)
	SemanticMatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_semantic_matches_total",
			Help: "AI category match calls, labeled by outcome (matched, no_match, cached).",
		},
		[]string{"outcome"},
	)
	DBQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Duration of database queries in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query_name"},
	)
)

func init() {
	prometheus.MustRegister(FetchRequests)
	prometheus.MustRegister(SessionResets)
	prometheus.MustRegister(FetchDuration)
	prometheus.MustRegister(ItemsProcessed)
	prometheus.MustRegister(PendingItems)
	prometheus.MustRegister(TotalItems)
	prometheus.MustRegister(TranslationRepairs)
	prometheus.MustRegister(SemanticMatches)
	prometheus.MustRegister(DBQueryDuration)
}

func ExposeMetrics(addr string) {
	slog.Info("Exposing Prometheus metrics", "address", addr)
	http.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, nil); err != nil {
		slog.Error("Failed to start Prometheus metrics server", "error", err)
	}
}
