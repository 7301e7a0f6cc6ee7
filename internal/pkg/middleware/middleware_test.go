package middleware

import (
	"encoding/base64"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axdashboard/axdash/internal/pkg/metrics"
)

func basic(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestRequireAdminWith(t *testing.T) {
	app := fiber.New()
	app.Get("/admin", RequireAdminWith("ops", "s3cret"), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "no credentials", header: "", want: fiber.StatusUnauthorized},
		{name: "wrong password", header: basic("ops", "nope"), want: fiber.StatusUnauthorized},
		{name: "wrong user", header: basic("root", "s3cret"), want: fiber.StatusUnauthorized},
		{name: "valid", header: basic("ops", "s3cret"), want: fiber.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodGet, "/admin", nil)
			if tc.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tc.header)
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

func TestRequireAdminWithoutPasswordDeniesAll(t *testing.T) {
	app := fiber.New()
	app.Get("/admin", RequireAdminWith("admin", ""), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	req := httptest.NewRequest(fiber.MethodGet, "/admin", nil)
	req.Header.Set(fiber.HeaderAuthorization, basic("admin", ""))
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRequestMetrics(t *testing.T) {
	app := fiber.New()
	app.Use(RequestMetrics())
	app.Get("/metrics-probe/:id", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusAccepted)
	})
	app.Get("/metrics-fail", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusTeapot, "short and stout")
	})

	counter := metrics.HTTPRequestsTotal.WithLabelValues(fiber.MethodGet, "/metrics-probe/:id", "202")
	before := counterValue(t, counter)
	for _, id := range []string{"1", "2"} {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/metrics-probe/"+id, nil), -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	}
	assert.Equal(t, before+2, counterValue(t, counter), "path parameters collapse into one route label")

	failed := metrics.HTTPRequestsTotal.WithLabelValues(fiber.MethodGet, "/metrics-fail", "418")
	before = counterValue(t, failed)
	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/metrics-fail", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTeapot, resp.StatusCode)
	assert.Equal(t, before+1, counterValue(t, failed))
}
