// Package metrics collects and exposes Prometheus metrics for the attendance engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what services and jobs use to report operational metrics.
type Recorder interface {
	RecordClockOperation(op, result string)
	RecordMaterialize(duration time.Duration, rows int)
	RecordReportCache(hit bool)
	SetOpenSessions(n int64)
}

// Collector is the Prometheus implementation of Recorder.
type Collector struct {
	clockOps        *prometheus.CounterVec
	materializeTime prometheus.Histogram
	materializeRows prometheus.Counter
	reportCache     *prometheus.CounterVec
	openSessions    prometheus.Gauge
}

// NewCollector creates a Collector and registers its metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		clockOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_clock_operations_total",
			Help: "Clock and break operations by operation and result",
		}, []string{"op", "result"}),
		materializeTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "attendance_materialize_duration_seconds",
			Help:    "Time spent expanding a user x day range into rows",
			Buckets: prometheus.DefBuckets,
		}),
		materializeRows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "attendance_materialized_rows_total",
			Help: "Rows produced by range materialization",
		}),
		reportCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_report_cache_total",
			Help: "Report cache lookups by outcome",
		}, []string{"outcome"}),
		openSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "attendance_open_sessions",
			Help: "Sessions currently without a clock-out",
		}),
	}

	reg.MustRegister(
		c.clockOps,
		c.materializeTime,
		c.materializeRows,
		c.reportCache,
		c.openSessions,
	)

	return c
}

// RecordClockOperation counts a clock-in, clock-out or break call.
func (c *Collector) RecordClockOperation(op, result string) {
	c.clockOps.WithLabelValues(op, result).Inc()
}

// RecordMaterialize observes one materialization run.
func (c *Collector) RecordMaterialize(duration time.Duration, rows int) {
	c.materializeTime.Observe(duration.Seconds())
	c.materializeRows.Add(float64(rows))
}

func (c *Collector) RecordReportCache(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	c.reportCache.WithLabelValues(outcome).Inc()
}

func (c *Collector) SetOpenSessions(n int64) {
	c.openSessions.Set(float64(n))
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordClockOperation(string, string) {}
func (Nop) RecordMaterialize(time.Duration, int) {}
func (Nop) RecordReportCache(bool) {}
func (Nop) SetOpenSessions(int64) {}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
