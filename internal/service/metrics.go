package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"dmcore/internal/domain"
)

// Metrics instruments Gateway operations.
type Metrics struct {
	ops       *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	published *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg. A nil reg keeps them
// unregistered, which is what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dmcore",
			Subsystem: "gateway",
			Name:      "operations_total",
			Help:      "Gateway operations by name and result code.",
		}, []string{"op", "result"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dmcore",
			Subsystem: "gateway",
			Name:      "operation_duration_seconds",
			Help:      "Gateway operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dmcore",
			Subsystem: "broker",
			Name:      "events_published_total",
			Help:      "Change events published by kind and outcome.",
		}, []string{"kind", "outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.ops, m.latency, m.published)
	}
	return m
}

func (m *Metrics) observe(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = domain.Code(err)
	}
	m.ops.WithLabelValues(op, result).Inc()
	m.latency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) event(kind domain.EventKind, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.published.WithLabelValues(string(kind), outcome).Inc()
}
