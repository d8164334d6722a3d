package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveBatch("pull_requests", ResultSuccess, 2*time.Second)
	m.ObserveBatch("pull_requests", ResultSuccess, time.Second)
	m.ObserveBatch("pull_requests", ResultRateLimited, time.Second)
	m.NotificationCreated("check_run_failed")
	m.NotificationsSuperseded(2)
	m.NotificationsSuperseded(0)
	m.RetentionDeleted("check_runs", 3)
	m.IdentityAttempt(OutcomeSkipped)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.batchesTotal.WithLabelValues("pull_requests", ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.batchesTotal.WithLabelValues("pull_requests", ResultRateLimited)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notificationsCreated.WithLabelValues("check_run_failed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.notificationsSuperseded))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.retentionDeleted.WithLabelValues("check_runs")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.identityAttempts.WithLabelValues(OutcomeSkipped)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.batchDuration))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveBatch("x", ResultError, time.Second)
		m.NotificationCreated("x")
		m.NotificationsSuperseded(1)
		m.RetentionDeleted("x", 1)
		m.IdentityAttempt(OutcomeError)
	})
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.IdentityAttempt(OutcomeSuccess)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "prwatch_identity_attempts_total"))
}
