package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/esg-registry/client/core/confirm"
	"github.com/weisyn/esg-registry/internal/core/infrastructure/event"
)

// TestObservers 测试各观察者计数
func TestObservers(t *testing.T) {
	m := New()

	m.ObserveConfirmation(confirm.StateResolved, 3*time.Second)
	m.ObserveConfirmation(confirm.StateTimedOut, 90*time.Second)
	m.ObserveConfirmation(confirm.StateResolved, time.Second)
	m.ObserveEvent(event.EventTypeReportObserved)
	m.ObserveCacheLookup(true)
	m.ObserveCacheLookup(false)
	m.ObserveCacheLookup(false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.confirmations.WithLabelValues("resolved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.confirmations.WithLabelValues("timed_out")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues("report.observed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("miss")))
}

// TestHandler 测试 /metrics 输出
func TestHandler(t *testing.T) {
	m := New()
	m.ObserveEvent(event.EventTypeReportRemoved)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `esg_feed_events_total{kind="report.removed"} 1`)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
