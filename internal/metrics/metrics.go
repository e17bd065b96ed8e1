// Package metrics exposes Prometheus collectors for the roster source and
// the expiry sweep.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/david/cityguide/internal/expiry"
	"github.com/david/cityguide/internal/roster"
)

const namespace = "cityguide"

type Metrics struct {
	registry *prometheus.Registry

	rosterLoads       *prometheus.CounterVec
	rosterDuration    prometheus.Histogram
	rosterPharmacies  prometheus.Gauge
	rosterLastSuccess prometheus.Gauge

	sweepEvents   *prometheus.CounterVec
	sweepDuration prometheus.Summary
}

// New registers every collector on a private registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.rosterLoads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "roster",
		Name:      "loads_total",
		Help:      "Uncached roster loads by outcome (ok, fetch, decode, parse)",
	}, []string{"outcome"})
	m.rosterDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "roster",
		Name:      "load_duration_seconds",
		Help:      "Time spent fetching, decoding and extracting the roster",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	})
	m.rosterPharmacies = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "roster",
		Name:      "pharmacies",
		Help:      "Pharmacies in the last successful extraction",
	})
	m.rosterLastSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "roster",
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix timestamp of the last successful extraction",
	})
	m.sweepEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sweep",
		Name:      "events_total",
		Help:      "Featured events seen by the expiry sweep, by result",
	}, []string{"result"})
	m.sweepDuration = prometheus.NewSummary(prometheus.SummaryOpts{
		Namespace: namespace,
		Subsystem: "sweep",
		Name:      "duration_seconds",
		Help:      "Time spent per sweep pass",
	})

	m.registry.MustRegister(
		m.rosterLoads, m.rosterDuration, m.rosterPharmacies, m.rosterLastSuccess,
		m.sweepEvents, m.sweepDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveRosterLoad(snap roster.ScheduleSnapshot, err error, took time.Duration) {
	m.rosterDuration.Observe(took.Seconds())
	if err != nil {
		m.rosterLoads.WithLabelValues(roster.FailureKind(err)).Inc()
		return
	}
	m.rosterLoads.WithLabelValues("ok").Inc()
	m.rosterPharmacies.Set(float64(len(snap.Pharmacies)))
	m.rosterLastSuccess.SetToCurrentTime()
}

func (m *Metrics) ObserveSweep(stats expiry.SweepStats, took time.Duration) {
	m.sweepDuration.Observe(took.Seconds())
	m.sweepEvents.WithLabelValues("checked").Add(float64(stats.Checked))
	m.sweepEvents.WithLabelValues("expired").Add(float64(stats.Expired))
	m.sweepEvents.WithLabelValues("updated").Add(float64(stats.Updated))
	m.sweepEvents.WithLabelValues("failed").Add(float64(stats.Failed))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
