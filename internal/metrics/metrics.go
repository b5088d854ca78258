// Package metrics exposes Prometheus collectors for the detection pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lootbot"

// Image outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeBadInput = "bad_input"
	OutcomeFailed   = "failed"
)

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	images    *prometheus.CounterVec
	items     *prometheus.CounterVec
	replies   *prometheus.CounterVec
	detection prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		images: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "images_total",
			Help:      "Images processed, by outcome.",
		}, []string{"outcome"}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_detected_total",
			Help:      "Tracked items detected, by display name.",
		}, []string{"item"}),
		replies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replies_total",
			Help:      "Brag replies sent, by response category.",
		}, []string{"category"}),
		detection: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "detection_duration_seconds",
			Help:      "Time spent in the detector per image.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
	m.registry.MustRegister(
		m.images, m.items, m.replies, m.detection,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ImageProcessed(outcome string) {
	m.images.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ItemsDetected(item string, count int) {
	m.items.WithLabelValues(item).Add(float64(count))
}

func (m *Metrics) ReplySent(category string) {
	m.replies.WithLabelValues(category).Inc()
}

func (m *Metrics) ObserveDetection(d time.Duration) {
	m.detection.Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
