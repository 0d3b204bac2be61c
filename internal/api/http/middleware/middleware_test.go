package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	apitypes "github.com/weisyn/esg-registry/internal/api/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	rec := serve(r, "/x", nil)
	generated := rec.Header().Get(HeaderRequestID)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, rec.Body.String())

	rec = serve(r, "/x", map[string]string{HeaderRequestID: "abc-123"})
	assert.Equal(t, "abc-123", rec.Header().Get(HeaderRequestID))
}

func TestRateLimit(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), NewRateLimit(nil, 1, 2).Middleware())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	assert.Equal(t, http.StatusNoContent, serve(r, "/x", nil).Code)
	assert.Equal(t, http.StatusNoContent, serve(r, "/x", nil).Code)

	rec := serve(r, "/x", nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	var problem apitypes.ProblemDetails
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, apitypes.CodeRateLimitExceeded, problem.Code)
	assert.Equal(t, rec.Header().Get(HeaderRequestID), problem.TraceID)
}

func TestRateLimitDisabled(t *testing.T) {
	r := gin.New()
	r.Use(NewRateLimit(nil, 0, 0).Middleware())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	for i := 0; i < 50; i++ {
		require.Equal(t, http.StatusNoContent, serve(r, "/x", nil).Code)
	}
}

func TestErrorHandler(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	r := gin.New()
	r.Use(RequestID(), ErrorHandler(zap.New(core)))
	r.GET("/plain", func(c *gin.Context) { _ = c.Error(errors.New("boom")) })
	r.GET("/problem", func(c *gin.Context) {
		_ = c.Error(apitypes.NewProblemDetails(apitypes.CodeUnknownKPI, apitypes.LayerRegistryAPI, "未知指标", "kpi 9", http.StatusNotFound, nil))
	})

	rec := serve(r, "/plain", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), apitypes.CodeInternalError)

	rec = serve(r, "/problem", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var problem apitypes.ProblemDetails
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, "/problem", problem.Instance)

	assert.Equal(t, 2, logs.Len())
}

func TestLoggerAndMetrics(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	r := gin.New()
	r.Use(RequestID(), Logger(zap.New(core)), m.Middleware())
	r.GET("/api/v1/reports/:owner", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(r, "/api/v1/reports/0xabc", nil)
	serve(r, "/api/v1/reports/0xdef", nil)
	serve(r, "/health", nil)
	serve(r, "/missing", nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestCounter.WithLabelValues("GET", "/api/v1/reports/:owner", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestCounter.WithLabelValues("GET", "unmatched", "404")))

	assert.Equal(t, 2, logs.FilterMessage("HTTP request").FilterLevelExact(zap.InfoLevel).Len())
	assert.Equal(t, 1, logs.FilterLevelExact(zap.DebugLevel).Len())
	assert.Equal(t, 1, logs.FilterLevelExact(zap.WarnLevel).Len())
}
