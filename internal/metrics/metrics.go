// Package metrics holds the Prometheus collectors for sign-in outcomes and
// callback traffic.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
)

// Metrics groups the collectors. The zero value is not usable; call New.
type Metrics struct {
	attempts *prometheus.CounterVec
	duration *prometheus.HistogramVec
	callback *prometheus.CounterVec
}

// New builds unregistered collectors.
func New() *Metrics {
	return &Metrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "login_attempts_total",
			Help: "Sign-in and account creation attempts by operation, provider and outcome",
		}, []string{"operation", "provider", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "login_duration_seconds",
			Help:    "Time spent in a sign-in operation, interactive steps included",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"operation", "provider"}),
		callback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "login_callbacks_total",
			Help: "Provider redirects received by the callback server",
		}, []string{"provider", "status"}),
	}
}

// Register adds every collector to reg, or to the default registerer when reg
// is nil. Collectors that are already registered are ignored.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{m.attempts, m.duration, m.callback} {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveAttempt records one finished operation. outcome is OutcomeSuccess or
// the failure kind name.
func (m *Metrics) ObserveAttempt(operation, provider, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(operation, provider, outcome).Inc()
	m.duration.WithLabelValues(operation, provider).Observe(elapsed.Seconds())
}

// ObserveCallback records one redirect hitting the callback server.
func (m *Metrics) ObserveCallback(provider string, status int) {
	if m == nil {
		return
	}
	m.callback.WithLabelValues(provider, strconv.Itoa(status)).Inc()
}

// Handler serves the metrics gathered by g, or the default gatherer when g is nil.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
