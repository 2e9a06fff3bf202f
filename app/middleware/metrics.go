package middleware

import (
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "realty"

// Portals group routes by audience. They keep labels bounded whatever paths clients request.
const (
	PortalPublic        = "public"
	PortalPartner       = "partner"
	PortalUser          = "user"
	PortalInstitutional = "institutional"
	PortalAdmin         = "admin"
	PortalInfra         = "infra"
)

// HTTPMetrics records request counts, latencies and auth refusals per portal
type HTTPMetrics struct {
	requests     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	inflight     prometheus.Gauge
	authFailures *prometheus.CounterVec
}

// NewHTTPMetrics registers the HTTP collectors on reg
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	f := promauto.With(reg)
	return &HTTPMetrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by portal, method, route template and status",
		}, []string{"portal", "method", "route", "status"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latencies in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"portal", "method", "route"}),
		inflight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "http_inflight_requests",
			Help:      "HTTP requests currently being served",
		}),
		authFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_auth_failures_total",
			Help:      "Requests refused with 401 or 403, by portal",
		}, []string{"portal", "status"}),
	}
}

var defaultHTTPMetrics = sync.OnceValue(func() *HTTPMetrics {
	return NewHTTPMetrics(prometheus.DefaultRegisterer)
})

// Metrics records into the default registry served at /metrics
func Metrics() fiber.Handler {
	return defaultHTTPMetrics().Handler()
}

// Handler returns the Fiber middleware
func (m *HTTPMetrics) Handler() fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		m.inflight.Inc()
		defer m.inflight.Dec()

		err := c.Next()

		status := c.Response().StatusCode()
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}

		// paths outside the API share one label so requests for random URLs stay bounded
		route := "unmatched"
		if r := c.Route(); r != nil && strings.HasPrefix(r.Path, "/api/") {
			route = r.Path
		}
		portal := PortalOf(route)
		method := c.Method()

		m.requests.WithLabelValues(portal, method, route, strconv.Itoa(status)).Inc()
		m.duration.WithLabelValues(portal, method, route).Observe(time.Since(start).Seconds())
		if status == fiber.StatusUnauthorized || status == fiber.StatusForbidden {
			m.authFailures.WithLabelValues(portal, strconv.Itoa(status)).Inc()
		}

		return err
	}
}

// PortalOf maps a route template to the audience it serves
func PortalOf(route string) string {
	rest, ok := strings.CutPrefix(route, "/api/v1/")
	if !ok {
		return PortalPublic
	}
	segment, _, _ := strings.Cut(rest, "/")
	switch segment {
	case "partners":
		return PortalPartner
	case "users":
		return PortalUser
	case "institutional":
		return PortalInstitutional
	case "admin":
		return PortalAdmin
	case "health", "metrics", "docs":
		return PortalInfra
	default:
		return PortalPublic
	}
}
