package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the ticket workflow.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	ticketsIssued    prometheus.Counter
	ticketsDelivered prometheus.Counter
	ticketsExpired   prometheus.Counter
	incidentsFiled   *prometheus.CounterVec
}

// NewMetrics initialises the registry with HTTP and domain metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "retiro_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "retiro_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	issued := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "retiro_tickets_issued_total",
		Help: "Withdrawal tickets issued by the totem flow.",
	})
	delivered := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "retiro_tickets_delivered_total",
		Help: "Tickets redeemed and delivered at the guard checkpoint.",
	})
	expired := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "retiro_tickets_expired_total",
		Help: "Tickets that ran out their TTL without delivery.",
	})
	incidents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "retiro_incidents_filed_total",
		Help: "Incidents filed by type.",
	}, []string{"tipo"})
	registry.MustRegister(requests, duration, issued, delivered, expired, incidents)
	return &Metrics{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:    requests,
		requestDuration:  duration,
		ticketsIssued:    issued,
		ticketsDelivered: delivered,
		ticketsExpired:   expired,
		incidentsFiled:   incidents,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// TicketIssued increments the issued counter.
func (m *Metrics) TicketIssued() {
	if m != nil {
		m.ticketsIssued.Inc()
	}
}

// TicketDelivered increments the delivered counter.
func (m *Metrics) TicketDelivered() {
	if m != nil {
		m.ticketsDelivered.Inc()
	}
}

// TicketExpired increments the expired counter.
func (m *Metrics) TicketExpired() {
	if m != nil {
		m.ticketsExpired.Inc()
	}
}

// IncidentFiled increments the incident counter for the given tipo.
func (m *Metrics) IncidentFiled(tipo string) {
	if m != nil {
		m.incidentsFiled.WithLabelValues(tipo).Inc()
	}
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
