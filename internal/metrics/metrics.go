// Package metrics defines the prometheus metrics of the watcher.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "easyslot"

// Metrics holds all watcher metrics, registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	ChecksTotal       *prometheus.CounterVec
	SlotsFoundTotal   *prometheus.CounterVec
	BookingsTotal     *prometheus.CounterVec
	LoginRetriesTotal *prometheus.CounterVec
	ErrorsTotal       *prometheus.CounterVec
	NotifyFailures    prometheus.Counter
	WatcherUp         *prometheus.GaugeVec
}

// New creates and registers all metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		ChecksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watch",
			Name:      "checks_total",
			Help:      "Total number of slot checks performed.",
		}, []string{"account"}),
		SlotsFoundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watch",
			Name:      "slots_found_total",
			Help:      "Total number of open slots found, by city.",
		}, []string{"account", "city"}),
		BookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watch",
			Name:      "bookings_total",
			Help:      "Total number of successfully booked appointments.",
		}, []string{"account"}),
		LoginRetriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "portal",
			Name:      "login_retries_total",
			Help:      "Total number of retried login attempts.",
		}, []string{"account"}),
		ErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watch",
			Name:      "errors_total",
			Help:      "Total number of errors in the watch loop.",
		}, []string{"account"}),
		NotifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "failures_total",
			Help:      "Total number of notifications that could not be sent.",
		}),
		WatcherUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "watch",
			Name:      "up",
			Help:      "Whether the watcher for an account is currently running.",
		}, []string{"account"}),
	}

	reg.MustRegister(
		m.ChecksTotal, m.SlotsFoundTotal, m.BookingsTotal,
		m.LoginRetriesTotal, m.ErrorsTotal, m.NotifyFailures, m.WatcherUp,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
