// Package metrics exposes ledger and API counters to Prometheus.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Degen-Markets/degen-markets-solana/internal/domain"
)

// Metrics holds the Prometheus collectors of one process.
type Metrics struct {
	registry *prometheus.Registry

	Events        *prometheus.CounterVec
	Deposited     prometheus.Counter
	PaidOut       prometheus.Counter
	Archived      prometheus.Counter
	Requests      *prometheus.CounterVec
	RequestTiming *prometheus.HistogramVec
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		Events: f.NewCounterVec(prometheus.CounterOpts{
			Name: "degenpools_events_total",
			Help: "Committed ledger events by type",
		}, []string{"type"}),
		Deposited: f.NewCounter(prometheus.CounterOpts{
			Name: "degenpools_deposited_units_total",
			Help: "Value units moved into pools by entries and funding",
		}),
		PaidOut: f.NewCounter(prometheus.CounterOpts{
			Name: "degenpools_paid_out_units_total",
			Help: "Value units paid to winners",
		}),
		Archived: f.NewCounter(prometheus.CounterOpts{
			Name: "degenpools_pools_archived_total",
			Help: "Resolved pools written to cold storage",
		}),
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "degenpools_http_requests_total",
			Help: "API requests by route pattern and status",
		}, []string{"route", "status"}),
		RequestTiming: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "degenpools_http_request_seconds",
			Help:    "API request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Publish implements domain.EventPublisher by counting ev.
func (m *Metrics) Publish(_ context.Context, ev domain.Event) error {
	m.Events.WithLabelValues(string(ev.Type)).Inc()
	switch ev.Type {
	case domain.EventPoolEntered, domain.EventPoolFunded:
		m.Deposited.Add(float64(ev.Amount))
	case domain.EventWinClaimed:
		m.PaidOut.Add(float64(ev.Amount))
	case domain.EventPoolArchived:
		m.Archived.Inc()
	}
	return nil
}

// ObserveRequest records one finished API request. route is the matched mux
// pattern, such as "GET /api/pools/{pool}".
func (m *Metrics) ObserveRequest(route string, status int, elapsed time.Duration) {
	m.Requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.RequestTiming.WithLabelValues(route).Observe(elapsed.Seconds())
}

var _ domain.EventPublisher = (*Metrics)(nil)
