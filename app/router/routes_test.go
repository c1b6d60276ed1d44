package router

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/amirphl/faredown-pricing/app/dto"
	"github.com/amirphl/faredown-pricing/config"
	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(c fiber.Ctx) error {
	return c.JSON(dto.APIResponse{Success: true, Message: c.Route().Path})
}

type stubPricing struct{}

func (stubPricing) Quote(c fiber.Ctx) error              { return ok(c) }
func (stubPricing) SubmitBargainOffer(c fiber.Ctx) error { return ok(c) }
func (stubPricing) AcceptBargain(c fiber.Ctx) error      { return ok(c) }
func (stubPricing) AbandonBargain(c fiber.Ctx) error     { return ok(c) }
func (stubPricing) GetBargainSession(c fiber.Ctx) error  { return ok(c) }

type stubRules struct{}

func (stubRules) CreateMarkupRule(c fiber.Ctx) error     { return ok(c) }
func (stubRules) UpdateMarkupRule(c fiber.Ctx) error     { return ok(c) }
func (stubRules) DeactivateMarkupRule(c fiber.Ctx) error { return ok(c) }
func (stubRules) GetMarkupRule(c fiber.Ctx) error        { return ok(c) }
func (stubRules) ListMarkupRules(c fiber.Ctx) error      { return ok(c) }
func (stubRules) MarkupRulesSummary(c fiber.Ctx) error   { return ok(c) }

type stubPromos struct{}

func (stubPromos) CreatePromoCode(c fiber.Ctx) error { return ok(c) }
func (stubPromos) UpdatePromoCode(c fiber.Ctx) error { return ok(c) }
func (stubPromos) GetPromoCode(c fiber.Ctx) error    { return ok(c) }
func (stubPromos) ListPromoCodes(c fiber.Ctx) error  { return ok(c) }
func (stubPromos) PromoCodeStats(c fiber.Ctx) error  { return ok(c) }

func testConfig() *config.ProductionConfig {
	return &config.ProductionConfig{
		Server: config.ServerConfig{
			BodyLimit:    1 << 20,
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
			IdleTimeout:  time.Second,
		},
		Security: config.SecurityConfig{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "PUT"},
			AllowCredentials: true,
			GlobalRateLimit:  1000,
			BargainRateLimit: 2,
			RateLimitWindow:  time.Minute,
			XFrameOptions:    "DENY",
		},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

func newTestRouter(checks map[string]HealthCheck) *fiber.App {
	r := NewFiberRouter(testConfig(), zerolog.Nop(), stubPricing{}, stubRules{}, stubPromos{}, checks)
	r.SetupRoutes()
	return r.GetApp()
}

func call(t *testing.T, app *fiber.App, method, path string) (*http.Response, dto.APIResponse) {
	t.Helper()
	var body io.Reader
	if method != http.MethodGet {
		body = strings.NewReader("{}")
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)

	var out dto.APIResponse
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func TestRoutes_Registered(t *testing.T) {
	tests := []struct {
		method string
		path   string
		route  string
	}{
		{http.MethodPost, "/api/v1/pricing/quote", "/api/v1/pricing/quote"},
		{http.MethodPost, "/api/v1/pricing/bargain/offer", "/api/v1/pricing/bargain/offer"},
		{http.MethodPost, "/api/v1/pricing/bargain/abandon", "/api/v1/pricing/bargain/abandon"},
		{http.MethodGet, "/api/v1/pricing/bargain/sessions/abc", "/api/v1/pricing/bargain/sessions/:session_id"},
		{http.MethodGet, "/api/v1/admin/markup-rules/summary", "/api/v1/admin/markup-rules/summary"},
		{http.MethodGet, "/api/v1/admin/markup-rules/12", "/api/v1/admin/markup-rules/:id"},
		{http.MethodPost, "/api/v1/admin/markup-rules/12/deactivate", "/api/v1/admin/markup-rules/:id/deactivate"},
		{http.MethodGet, "/api/v1/admin/promo-codes/WINTER/stats", "/api/v1/admin/promo-codes/:code/stats"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			// fresh router per route so the bargain limiter does not interfere
			resp, out := call(t, newTestRouter(nil), tt.method, tt.path)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, tt.route, out.Message)
			assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
		})
	}
}

func TestRoutes_NotFound(t *testing.T) {
	resp, out := call(t, newTestRouter(nil), http.MethodGet, "/api/v1/nothing-here")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.False(t, out.Success)
}

func TestRoutes_Health(t *testing.T) {
	resp, out := call(t, newTestRouter(map[string]HealthCheck{
		"database": func(context.Context) error { return nil },
	}), http.MethodGet, "/api/v1/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, out.Success)

	resp, out = call(t, newTestRouter(map[string]HealthCheck{
		"database": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	}), http.MethodGet, "/api/v1/health")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.False(t, out.Success)
	data, _ := out.Data.(map[string]any)
	checks, _ := data["checks"].(map[string]any)
	assert.Equal(t, "connection refused", checks["redis"])
}

func TestRoutes_BargainRateLimit(t *testing.T) {
	app := newTestRouter(nil)

	for i := 0; i < 2; i++ {
		resp, _ := call(t, app, http.MethodPost, "/api/v1/pricing/bargain/offer")
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, out := call(t, app, http.MethodPost, "/api/v1/pricing/bargain/offer")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.False(t, out.Success)

	// quotes are not throttled by the bargain limiter
	resp, _ = call(t, app, http.MethodPost, "/api/v1/pricing/quote")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRoutes_Metrics(t *testing.T) {
	app := newTestRouter(nil)
	call(t, app, http.MethodPost, "/api/v1/pricing/quote")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "faredown_http_requests_total")
}
