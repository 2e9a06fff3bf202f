package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPMetrics(t *testing.T) {
	m := NewHTTPMetrics(prometheus.NewRegistry())

	app := fiber.New()
	app.Use(m.Handler())
	app.Get("/api/v1/leads/:id", func(c fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	app.Get("/api/v1/partners/me", func(c fiber.Ctx) error {
		return c.SendStatus(fiber.StatusUnauthorized)
	})

	for _, path := range []string{"/api/v1/leads/7", "/api/v1/leads/8", "/api/v1/partners/me", "/wp-login.php"} {
		_, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues(PortalPublic, "GET", "/api/v1/leads/:id", "200")),
		"ids collapse into the route template")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues(PortalPartner, "GET", "/api/v1/partners/me", "401")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.authFailures.WithLabelValues(PortalPartner, "401")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues(PortalPublic, "GET", "unmatched", "404")))
	assert.Zero(t, testutil.ToFloat64(m.inflight))
}

func TestPortalOf(t *testing.T) {
	tests := map[string]string{
		"/api/v1/leads":                      PortalPublic,
		"/api/v1/offers/:id":                 PortalPublic,
		"/api/v1/partners/login":             PortalPartner,
		"/api/v1/users/me":                   PortalUser,
		"/api/v1/institutional/bids":         PortalInstitutional,
		"/api/v1/admin/partners/:id/approve": PortalAdmin,
		"/api/v1/health":                     PortalInfra,
		"/api/v1/docs/swagger.json":          PortalInfra,
		"unmatched":                          PortalPublic,
	}
	for route, want := range tests {
		assert.Equal(t, want, PortalOf(route), route)
	}
}
