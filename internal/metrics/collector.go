// Package metrics exposes relay metrics in the Prometheus format.
//
// Metrics:
//   - kopiloka_chat_requests_total: relay calls by provider, model and status
//   - kopiloka_chat_request_duration_seconds: upstream latency
//   - kopiloka_chat_prompt_tokens: estimated prompt size per call
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "kopiloka"
	subsystem = "chat"
)

type Collector struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	promptTokens    *prometheus.HistogramVec
}

// NewCollector registers the relay metrics with registry. A nil registry gets
// a fresh private one, so tests and multiple collectors never collide.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "requests_total",
				Help:      "Total number of chat completions relayed upstream",
			},
			[]string{"provider", "model", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "request_duration_seconds",
				Help:      "Duration of upstream completion calls in seconds",
				// LLM latencies, up to the 30s request deadline
				Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
			},
			[]string{"provider", "model"},
		),
		promptTokens: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "prompt_tokens",
				Help:      "Estimated prompt tokens per completion, system instruction included",
				Buckets:   prometheus.ExponentialBuckets(64, 2, 10),
			},
			[]string{"provider", "model"},
		),
	}

	registry.MustRegister(c.requestsTotal, c.requestDuration, c.promptTokens)
	return c
}

// ObserveReply records one relay call.
func (c *Collector) ObserveReply(provider, model, status string, duration time.Duration, promptTokens int) {
	c.requestsTotal.WithLabelValues(provider, model, status).Inc()
	c.requestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
	if promptTokens > 0 {
		c.promptTokens.WithLabelValues(provider, model).Observe(float64(promptTokens))
	}
}

// Handler serves the collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
