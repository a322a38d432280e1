// Package metrics exposes Prometheus metrics for HTTP traffic and the
// patient flow.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "siah"

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		},
	)

	// Flow metrics
	flowEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flow_events_total",
			Help:      "Domain events emitted, by type",
		},
		[]string{"type"},
	)

	queueWaiting = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_waiting_patients",
			Help:      "Patients waiting, by queue",
		},
		[]string{"queue"},
	)

	ticketsWaiting = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tickets_waiting",
			Help:      "Senhas not yet called, by type",
		},
		[]string{"type"},
	)

	activeCalls = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "board_active_calls",
			Help:      "Calls currently shown on the public board",
		},
	)

	websocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected WebSocket clients",
		},
	)

	dbConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_active",
			Help:      "Acquired PostgreSQL connections",
		},
	)
)

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and latency. Routes are labelled with
// their template (/api/v1/patients/:id) to bound cardinality.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			httpRequestsInFlight.Inc()
			defer httpRequestsInFlight.Dec()

			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else {
					status = http.StatusInternalServerError
				}
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}

			httpRequestsTotal.WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).Inc()
			httpRequestDuration.WithLabelValues(c.Request().Method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// --- Flow metric helpers ---

func RecordEvent(eventType string) {
	flowEventsTotal.WithLabelValues(eventType).Inc()
}

func SetQueueWaiting(queue string, n int) {
	queueWaiting.WithLabelValues(queue).Set(float64(n))
}

func SetTicketsWaiting(ticketType string, n int) {
	ticketsWaiting.WithLabelValues(ticketType).Set(float64(n))
}

func SetActiveCalls(n int) {
	activeCalls.Set(float64(n))
}

func SetWebsocketClients(n int) {
	websocketClients.Set(float64(n))
}

func RecordDBConnections(n int32) {
	dbConnectionsActive.Set(float64(n))
}
