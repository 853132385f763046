package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Manager) string {
	t.Helper()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestManagerRecordsTaskMetrics(t *testing.T) {
	m := NewManager(DefaultConfig())

	m.RecordTask("OK", 120*time.Millisecond)
	m.RecordTask("VALIDATION_ERROR", 5*time.Millisecond)
	m.RecordStage("analyze", 40*time.Millisecond)

	body := scrape(t, m)
	assert.Contains(t, body, `somnus_task_runs_total{code="OK"} 1`)
	assert.Contains(t, body, `somnus_task_runs_total{code="VALIDATION_ERROR"} 1`)
	assert.Contains(t, body, `somnus_task_stage_duration_seconds`)
}

func TestManagerRecordsMemoryOps(t *testing.T) {
	m := NewManager(DefaultConfig())

	m.RecordMemoryOp("get", "stm", time.Millisecond, nil)
	m.RecordMemoryOp("put", "ltm", time.Millisecond, errors.New("down"))

	body := scrape(t, m)
	assert.Contains(t, body, `somnus_memory_ops_total{op="get",outcome="ok",tier="stm"} 1`)
	assert.Contains(t, body, `somnus_memory_ops_total{op="put",outcome="error",tier="ltm"} 1`)
}

func TestManagerRecordsHTTPMetrics(t *testing.T) {
	m := NewManager(DefaultConfig())

	m.IncActiveConnections()
	m.RecordHTTPRequest(http.MethodGet, "/api/v1/memory", "200", 2*time.Millisecond)
	m.DecActiveConnections()

	body := scrape(t, m)
	assert.Contains(t, body, `http_requests_total{method="GET",path="/api/v1/memory",status="200"} 1`)
	assert.Contains(t, body, `http_active_connections 0`)
}

func TestDisabledManagerIsInert(t *testing.T) {
	m := NewManager(Config{Enabled: false})
	require.False(t, m.Enabled())

	// Recording on a disabled manager must not panic.
	m.RecordTask("OK", time.Millisecond)
	m.RecordStage("analyze", time.Millisecond)
	m.RecordMemoryOp("get", "stm", time.Millisecond, nil)
	m.RecordHTTPRequest(http.MethodGet, "/", "200", time.Millisecond)
	m.IncActiveConnections()
	m.DecActiveConnections()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
