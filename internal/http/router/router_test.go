package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apphttp "cultivation_backend/internal/http"
	"cultivation_backend/platform/logger"
	"cultivation_backend/platform/metrics"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type routerConfig struct{}

func (routerConfig) GetHTTPAddr() string        { return ":0" }
func (routerConfig) GetCORSAllowAll() bool      { return false }
func (routerConfig) GetCORSOrigins() []string   { return []string{"https://farm.test"} }
func (routerConfig) GetCORSAllowCreds() bool    { return true }
func (routerConfig) GetRateLimitRPS() float64   { return 0 }
func (routerConfig) GetJWTAccessSecret() string { return testSecret }

type health struct{ err error }

func (h health) Ping(context.Context) error { return h.err }

type echoModule struct{}

func (echoModule) Name() string { return "echo" }

func (echoModule) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/whoami", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("subject")) })
	ctx.Admin.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
}

func newEngine(h apphttp.HealthChecker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return New(&apphttp.App{
		Config:  routerConfig{},
		Logger:  logger.Nop(),
		Health:  h,
		Metrics: metrics.New(),
		Modules: []apphttp.Module{echoModule{}},
	})
}

func token(t *testing.T, roles ...string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":   "user-1",
		"email": "op@farm.test",
		"type":  "access",
		"roles": roles,
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func get(e http.Handler, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	assert.Equal(t, http.StatusOK, get(newEngine(health{}), "/api/health", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(newEngine(health{err: errors.New("down")}), "/api/health", "").Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	e := newEngine(health{})

	assert.Equal(t, http.StatusUnauthorized, get(e, "/api/v1/whoami", "").Code)

	w := get(e, "/api/v1/whoami", token(t))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-1", w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestAdminRoutesRequireRole(t *testing.T) {
	e := newEngine(health{})

	assert.Equal(t, http.StatusForbidden, get(e, "/api/v1/admin/ping", token(t)).Code)
	assert.Equal(t, http.StatusOK, get(e, "/api/v1/admin/ping", token(t, "admin")).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	e := newEngine(health{})
	get(e, "/api/health", "")

	w := get(e, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cultivation_")
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	e := newEngine(health{})
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://farm.test")
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)

	assert.Equal(t, "https://farm.test", w.Header().Get("Access-Control-Allow-Origin"))
}
