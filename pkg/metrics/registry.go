// Package metrics exposes the service's operational gauges and counters
// over a Prometheus registry: tick timing, fusion outcomes, mailbox depths
// and scheduler runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry owns the service's Prometheus collectors.
type Registry struct {
	reg *prometheus.Registry

	tickDuration  prometheus.Histogram
	tickCount     prometheus.Counter
	tickFailures  prometheus.Counter
	edgesUpdated  prometheus.Gauge
	averageRisk   prometheus.Gauge
	routesServed  prometheus.Counter
	mailboxDepth  *prometheus.GaugeVec
	schedulerRuns *prometheus.CounterVec
}

// NewRegistry creates and registers all collectors.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "evacroute",
			Name:      "tick_duration_seconds",
			Help:      "Wall time of one complete tick.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		tickCount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "evacroute",
			Name:      "ticks_total",
			Help:      "Completed ticks, successful or not.",
		}),
		tickFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "evacroute",
			Name:      "tick_failures_total",
			Help:      "Ticks that aborted in a phase.",
		}),
		edgesUpdated: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "evacroute",
			Name:      "edges_updated",
			Help:      "Edges whose risk changed in the last fusion phase.",
		}),
		averageRisk: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "evacroute",
			Name:      "average_risk",
			Help:      "Length-weighted average edge risk after the last fusion phase.",
		}),
		routesServed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "evacroute",
			Name:      "routes_served_total",
			Help:      "Route requests answered in routing phases.",
		}),
		mailboxDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "evacroute",
			Name:      "mailbox_depth",
			Help:      "Queued messages per agent mailbox.",
		}, []string{"agent"}),
		schedulerRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "evacroute",
			Name:      "scheduler_runs_total",
			Help:      "Upstream refresh runs by outcome.",
		}, []string{"outcome"}),
	}

	r.reg.MustRegister(
		r.tickDuration,
		r.tickCount,
		r.tickFailures,
		r.edgesUpdated,
		r.averageRisk,
		r.routesServed,
		r.mailboxDepth,
		r.schedulerRuns,
	)

	return r
}

// ObserveTick records one completed tick.
func (r *Registry) ObserveTick(duration time.Duration, success bool, edgesUpdated int, averageRisk float64, routesServed int) {
	r.tickDuration.Observe(duration.Seconds())
	r.tickCount.Inc()
	if !success {
		r.tickFailures.Inc()
	}
	r.edgesUpdated.Set(float64(edgesUpdated))
	r.averageRisk.Set(averageRisk)
	r.routesServed.Add(float64(routesServed))
}

// SetMailboxDepth records a mailbox's current queue depth.
func (r *Registry) SetMailboxDepth(agent string, depth int) {
	r.mailboxDepth.WithLabelValues(agent).Set(float64(depth))
}

// RecordSchedulerRun counts one refresh run by outcome.
func (r *Registry) RecordSchedulerRun(success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	r.schedulerRuns.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
