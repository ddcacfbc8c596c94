package observability

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/x", "200", time.Millisecond)
	m.ObserveJob("clip_generate", "succeeded", time.Second)
	m.IncPollCheck("clip", "reschedule")
	m.ObserveProviderCall("kling", "submit", nil, time.Second)
	m.ObserveMediaStep("normalize", nil, time.Second)
	assert.Nil(t, m.Registry())
}

func TestMetricsCountAndExpose(t *testing.T) {
	m := New()
	m.ObserveJob("clip_generate", "yielded", 10*time.Millisecond)
	m.ObserveJob("clip_generate", "yielded", 10*time.Millisecond)
	m.ObserveProviderCall("kling", "submit", errors.New("x"), time.Second)
	m.IncPollCheck("clip", "done")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `vsb_job_runs_total{job_type="clip_generate",outcome="yielded"} 2`), body)
	assert.True(t, strings.Contains(body, `vsb_provider_calls_total{operation="submit",provider="kling",status="error"} 1`))
	assert.True(t, strings.Contains(body, "vsb_poll_checks_total"))
}
