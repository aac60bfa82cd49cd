// Package metrics provides Prometheus metrics for the query engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Query outcomes used as the "outcome" label.
const (
	OutcomeOK          = "ok"
	OutcomeQueryError  = "query_error"
	OutcomeNeedsIndex  = "needs_index"
	OutcomeStoreFailed = "store_error"
)

// Metrics holds all Prometheus metrics for ansuz.
type Metrics struct {
	reg *prometheus.Registry

	QueriesTotal  *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
	QueryRows     prometheus.Histogram

	RebuildsTotal   *prometheus.CounterVec
	RebuildDuration prometheus.Histogram
	IndexDocuments  prometheus.Gauge
	IndexBuiltAt    prometheus.Gauge

	WatcherEventsTotal *prometheus.CounterVec
}

// New creates all metrics on a private registry, plus the standard Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		QueriesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ansuz_queries_total",
			Help: "Total number of submitted queries by type and outcome",
		}, []string{"type", "outcome"}),
		QueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ansuz_query_duration_seconds",
			Help:    "Duration of query parsing and execution in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"type"}),
		QueryRows: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ansuz_query_result_rows",
			Help:    "Number of rows (or groups) returned per query before limit",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
		RebuildsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ansuz_index_rebuilds_total",
			Help: "Total number of metadata index rebuilds",
		}, []string{"outcome"}),
		RebuildDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ansuz_index_rebuild_duration_seconds",
			Help:    "Duration of metadata index rebuilds in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		IndexDocuments: f.NewGauge(prometheus.GaugeOpts{
			Name: "ansuz_index_documents",
			Help: "Number of documents in the active metadata index",
		}),
		IndexBuiltAt: f.NewGauge(prometheus.GaugeOpts{
			Name: "ansuz_index_built_at_seconds",
			Help: "Unix time of the last successful index build",
		}),
		WatcherEventsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ansuz_watcher_events_total",
			Help: "Vault file changes applied by the watcher",
		}, []string{"kind"}),
	}
}

// ObserveQuery records one query. A nil receiver is a no-op.
func (m *Metrics) ObserveQuery(queryType, outcome string, d time.Duration, rows int) {
	if m == nil {
		return
	}
	if queryType == "" {
		queryType = "unknown"
	}
	m.QueriesTotal.WithLabelValues(queryType, outcome).Inc()
	m.QueryDuration.WithLabelValues(queryType).Observe(d.Seconds())
	if outcome == OutcomeOK {
		m.QueryRows.Observe(float64(rows))
	}
}

// ObserveRebuild records one index rebuild attempt.
func (m *Metrics) ObserveRebuild(err error, d time.Duration, docs int, builtAt time.Time) {
	if m == nil {
		return
	}
	if err != nil {
		m.RebuildsTotal.WithLabelValues("error").Inc()
		return
	}
	m.RebuildsTotal.WithLabelValues(OutcomeOK).Inc()
	m.RebuildDuration.Observe(d.Seconds())
	m.IndexDocuments.Set(float64(docs))
	m.IndexBuiltAt.Set(float64(builtAt.Unix()))
}

// WatcherEvent counts a watcher-driven index change.
func (m *Metrics) WatcherEvent(kind string) {
	if m == nil {
		return
	}
	m.WatcherEventsTotal.WithLabelValues(kind).Inc()
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler returns the Prometheus HTTP handler for /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
