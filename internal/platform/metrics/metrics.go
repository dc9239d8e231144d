// Package metrics holds the prometheus collectors of the inventory service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Metrics owns a private registry so that several instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	SalesTotal   prometheus.Counter
	UnitsSold    prometheus.Counter
	RevenueTotal prometheus.Counter
	// profit may be negative when selling below the buy price
	ProfitTotal prometheus.Gauge
}

// New registers every collector under the given metric name prefix.
func New(prefix string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    prefix + "_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		SalesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_sales_total",
			Help: "Total number of committed sales",
		}),
		UnitsSold: factory.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_units_sold_total",
			Help: "Total number of units sold",
		}),
		RevenueTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_revenue_total",
			Help: "Revenue of committed sales",
		}),
		ProfitTotal: factory.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "_profit_total",
			Help: "Profit of committed sales",
		}),
	}
}

// ObserveSale records a committed sale.
func (m *Metrics) ObserveSale(quantity int, revenue, profit decimal.Decimal) {
	m.SalesTotal.Inc()
	m.UnitsSold.Add(float64(quantity))
	m.RevenueTotal.Add(revenue.InexactFloat64())
	m.ProfitTotal.Add(profit.InexactFloat64())
}

// Middleware records the count and duration of requests, labelled by route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		status := strconv.Itoa(ww.Status())
		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
	})
}

// Handler exposes the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
