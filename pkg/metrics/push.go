package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PushMetrics records per-gateway push delivery outcomes.
type PushMetrics struct {
	sent     *prometheus.CounterVec
	failed   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewPushMetrics registers the push delivery metrics on the provided registerer.
func NewPushMetrics(reg prometheus.Registerer) *PushMetrics {
	if reg == nil {
		return &PushMetrics{}
	}
	sent := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "push_sent_total",
		Help: "Push notifications delivered per gateway.",
	}, []string{"gateway"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "push_failed_total",
		Help: "Push notification failures per gateway.",
	}, []string{"gateway"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "push_send_duration_seconds",
		Help:    "Duration of per-device push sends in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"gateway"})
	reg.MustRegister(sent, failed, duration)
	return &PushMetrics{
		sent:     sent,
		failed:   failed,
		duration: duration,
	}
}

// IncSent increments the delivered counter for the gateway.
func (p *PushMetrics) IncSent(gateway string) {
	if p == nil || p.sent == nil {
		return
	}
	p.sent.WithLabelValues(normalizeLabel(gateway)).Inc()
}

// IncFailed increments the failure counter for the gateway.
func (p *PushMetrics) IncFailed(gateway string) {
	if p == nil || p.failed == nil {
		return
	}
	p.failed.WithLabelValues(normalizeLabel(gateway)).Inc()
}

// ObserveSend records the duration of a per-device send.
func (p *PushMetrics) ObserveSend(gateway string, duration time.Duration) {
	if p == nil || p.duration == nil {
		return
	}
	p.duration.WithLabelValues(normalizeLabel(gateway)).Observe(duration.Seconds())
}
