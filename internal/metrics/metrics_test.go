package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecordsRequests(t *testing.T) {
	t.Parallel()

	m := New(false)
	m.ObserveRequest("loginUser", "ok", 20*time.Millisecond)
	m.ObserveRequest("loginUser", "unauthenticated", time.Millisecond)
	m.ObserveRequest("loginUser", "ok", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("loginUser", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("loginUser", "unauthenticated")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.requestDuration))
}

func TestMetricsGaugesAndCounters(t *testing.T) {
	t.Parallel()

	m := New(false)
	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()
	m.SessionsPurged(3)
	m.SessionsPurged(0)
	m.CurrentBillboardServed(true)
	m.CurrentBillboardServed(false)
	m.CurrentBillboardServed(false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.activeConnections))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.sessionsPurged))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.currentLookups.WithLabelValues("fallback")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.currentLookups.WithLabelValues("schedule")))
}

func TestMetricsNilReceiverIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("checkSession", "ok", time.Millisecond)
		m.ConnectionOpened()
		m.ConnectionClosed()
		m.SessionsPurged(1)
		m.CurrentBillboardServed(true)
	})
}

func TestMetricsHandlerServesTextFormat(t *testing.T) {
	t.Parallel()

	m := New(true)
	m.SessionsPurged(2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "billboard_sessions_purged_total 2"), body)
	assert.True(t, strings.Contains(body, "go_goroutines"), "runtime collectors should be registered")
}
