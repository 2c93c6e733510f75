package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/radiology-api/internal/model"
	apperrors "github.com/jwalitptl/radiology-api/pkg/errors"
	"github.com/jwalitptl/radiology-api/pkg/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAuth map[string]*model.Doctor

func (f fakeAuth) Authenticate(_ context.Context, token string) (*model.Doctor, error) {
	if d, ok := f[token]; ok {
		return d, nil
	}
	return nil, apperrors.Unauthorized(nil)
}

var doctors = fakeAuth{
	"user-token":  {ID: 1, EmployeeNumber: "E1", AccessLevel: model.AccessLevelUser},
	"admin-token": {ID: 2, EmployeeNumber: "E2", AccessLevel: model.AccessLevelAdmin},
}

func whoami(c *gin.Context) {
	doctor, ok := CurrentDoctor(c)
	if !ok {
		c.String(http.StatusOK, "anonymous")
		return
	}
	c.String(http.StatusOK, doctor.EmployeeNumber)
}

func do(r http.Handler, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthenticate(t *testing.T) {
	m := NewAuthMiddleware(doctors)
	r := gin.New()
	r.GET("/me", m.Authenticate(), whoami)
	r.DELETE("/patients", m.Authenticate(), RequireAccessLevel(model.AccessLevelAdmin), whoami)

	tests := []struct {
		name   string
		method string
		path   string
		header string
		status int
		body   string
	}{
		{"missing header", http.MethodGet, "/me", "", http.StatusUnauthorized, ""},
		{"wrong scheme", http.MethodGet, "/me", "Basic abc", http.StatusUnauthorized, ""},
		{"unknown token", http.MethodGet, "/me", "Bearer nope", http.StatusUnauthorized, ""},
		{"valid", http.MethodGet, "/me", "Bearer user-token", http.StatusOK, "E1"},
		{"lower-case scheme", http.MethodGet, "/me", "bearer user-token", http.StatusOK, "E1"},
		{"insufficient level", http.MethodDelete, "/patients", "Bearer user-token", http.StatusForbidden, ""},
		{"admin", http.MethodDelete, "/patients", "Bearer admin-token", http.StatusOK, "E2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, tt.method, tt.path, map[string]string{"Authorization": tt.header})
			assert.Equal(t, tt.status, w.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, w.Body.String())
			}
			if tt.status >= 400 {
				var resp map[string]any
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, "error", resp["status"])
			}
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	r := gin.New()
	r.GET("/import", NewAuthMiddleware(doctors).Optional(), whoami)

	w := do(r, http.MethodGet, "/import", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "anonymous", w.Body.String())

	w = do(r, http.MethodGet, "/import", map[string]string{"Authorization": "Bearer admin-token"})
	assert.Equal(t, "E2", w.Body.String())

	w = do(r, http.MethodGet, "/import", map[string]string{"Authorization": "Bearer expired"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(ContextRequestID)) })

	w := do(r, http.MethodGet, "/", map[string]string{HeaderXRequestID: "abc-123"})
	assert.Equal(t, "abc-123", w.Body.String())
	assert.Equal(t, "abc-123", w.Header().Get(HeaderXRequestID))

	w = do(r, http.MethodGet, "/", nil)
	assert.Len(t, w.Body.String(), 36)
	assert.Equal(t, w.Body.String(), w.Header().Get(HeaderXRequestID))
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Recovery())
	r.GET("/boom", func(*gin.Context) { panic("boom") })

	w := do(r, http.MethodGet, "/boom", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "boom")
}

func TestRateLimitPerClient(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 0.001, Burst: 2})
	r := gin.New()
	r.GET("/", rl.RateLimit(), func(c *gin.Context) { c.Status(http.StatusOK) })

	call := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":5000"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1"))
	assert.Equal(t, http.StatusOK, call("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1"))
	assert.Equal(t, http.StatusOK, call("10.0.0.2"))
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS(DefaultCORSConfig([]string{"https://ris.example.org"})))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := do(r, http.MethodOptions, "/", map[string]string{"Origin": "https://ris.example.org"})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://ris.example.org", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))

	w = do(r, http.MethodGet, "/", map[string]string{"Origin": "https://evil.example.com"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestBodyLimit(t *testing.T) {
	r := gin.New()
	r.POST("/login", BodyLimit(16), func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(strings.Repeat("x", 64)))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg, "test")
	r := gin.New()
	r.Use(Metrics(m))
	r.GET("/api/reports/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	do(r, http.MethodGet, "/api/reports/1", nil)
	do(r, http.MethodGet, "/api/reports/2", nil)
	do(r, http.MethodGet, "/nowhere", nil)

	families, err := reg.Gather()
	require.NoError(t, err)
	paths := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "test_http_requests_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if lp.GetName() == "path" {
					paths[lp.GetValue()] += metric.GetCounter().GetValue()
				}
			}
		}
	}
	assert.Equal(t, 2.0, paths["/api/reports/:id"])
	assert.Equal(t, 1.0, paths["unmatched"])
}

func TestSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeaders(DefaultSecurityConfig()))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := do(r, http.MethodGet, "/", nil)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}
