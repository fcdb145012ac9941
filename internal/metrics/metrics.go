// Package metrics exposes Prometheus series for coaching sessions.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "coach"

var (
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of session controllers currently running",
		},
	)

	sessionTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_transitions_total",
			Help:      "Total number of session phase transitions",
		},
		[]string{"from", "to"},
	)

	framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Total number of landmark frames scored",
		},
		[]string{"result"}, // result: centered, off_center, no_face, malformed
	)

	framesDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Landmark frames dropped because the session buffer was full",
		},
	)

	backendDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Duration of question and analysis backend calls in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"endpoint", "status"},
	)

	utterancesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "utterances_total",
			Help:      "Total number of voice utterances by outcome",
		},
		[]string{"outcome"}, // outcome: completed, interrupted, failed
	)

	allMetrics = []prometheus.Collector{
		sessionsActive,
		sessionTransitions,
		framesTotal,
		framesDropped,
		backendDuration,
		utterancesTotal,
	}
)

// NewRegistry returns a registry holding every coach series plus Go runtime collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	for _, c := range allMetrics {
		reg.MustRegister(c)
	}
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func SessionOpened() { sessionsActive.Inc() }

func SessionClosed() { sessionsActive.Dec() }

// RecordTransition counts one phase change.
func RecordTransition(from, to string) {
	sessionTransitions.WithLabelValues(from, to).Inc()
}

// RecordFrame counts one scored frame by classification result.
func RecordFrame(result string) {
	framesTotal.WithLabelValues(result).Inc()
}

func RecordFrameDropped() { framesDropped.Inc() }

// RecordBackendRequest observes a collaborator call; status is the HTTP status
// code as text, or "error" when no response was received.
func RecordBackendRequest(endpoint, status string, d time.Duration) {
	backendDuration.WithLabelValues(endpoint, status).Observe(d.Seconds())
}

// RecordUtterance counts a finished utterance.
func RecordUtterance(outcome string) {
	utterancesTotal.WithLabelValues(outcome).Inc()
}
