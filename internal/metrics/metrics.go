// Package metrics exposes Prometheus instrumentation for the kiosk
// pipeline: reading verdicts, episode outcomes, mirror failures, and
// checkouts.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the kiosk collectors. A nil *Metrics is valid and
// records nothing, so tests can pass nil.
type Metrics struct {
	readings    *prometheus.CounterVec
	episodes    *prometheus.CounterVec
	storeErrors *prometheus.CounterVec
	checkouts   prometheus.Counter
	revenue     prometheus.Counter
	cartItems   prometheus.Gauge
}

// New registers the kiosk collectors with the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		readings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kiosk_readings_total",
			Help: "Scale readings processed, by filter verdict.",
		}, []string{"verdict"}),
		episodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kiosk_episodes_total",
			Help: "Detection episodes ended, by outcome.",
		}, []string{"outcome"}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kiosk_store_errors_total",
			Help: "Best-effort session mirror failures, by operation.",
		}, []string{"op"}),
		checkouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kiosk_checkouts_total",
			Help: "Completed checkouts.",
		}),
		revenue: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kiosk_checkout_amount_total",
			Help: "Sum of checkout amounts.",
		}),
		cartItems: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kiosk_cart_items",
			Help: "Items currently in the cart.",
		}),
	}
	reg.MustRegister(m.readings, m.episodes, m.storeErrors, m.checkouts, m.revenue, m.cartItems)
	return m
}

// Reading counts one processed reading by its filter verdict.
func (m *Metrics) Reading(verdict string) {
	if m == nil {
		return
	}
	m.readings.WithLabelValues(verdict).Inc()
}

// Episode counts one ended detection episode by outcome
// (resolved, timed_out, cancelled).
func (m *Metrics) Episode(outcome string) {
	if m == nil {
		return
	}
	m.episodes.WithLabelValues(outcome).Inc()
}

// StoreError counts one failed mirror operation.
func (m *Metrics) StoreError(op string) {
	if m == nil {
		return
	}
	m.storeErrors.WithLabelValues(op).Inc()
}

// Checkout records a completed checkout and its amount.
func (m *Metrics) Checkout(amount float64) {
	if m == nil {
		return
	}
	m.checkouts.Inc()
	m.revenue.Add(amount)
}

// CartSize tracks the current cart length.
func (m *Metrics) CartSize(n int) {
	if m == nil {
		return
	}
	m.cartItems.Set(float64(n))
}
