package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pandoapps/videoSoryBoard/internal/platform/ctxutil"
)

func traceRouter(seen **ctxutil.TraceData) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(TraceContext())
	r.GET("/api/stories", func(c *gin.Context) {
		*seen = ctxutil.GetTraceData(c.Request.Context())
		c.Status(http.StatusOK)
	})
	return r
}

func TestTraceContextKeepsCallerRequestID(t *testing.T) {
	var td *ctxutil.TraceData
	r := traceRouter(&td)

	req := httptest.NewRequest(http.MethodGet, "/api/stories", nil)
	req.Header.Set(HeaderRequestID, "req-123")
	req.Header.Set(HeaderTraceID, "trace-abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.NotNil(t, td)
	assert.Equal(t, "req-123", td.RequestID)
	assert.Equal(t, "trace-abc", td.TraceID)
	assert.Equal(t, "req-123", w.Header().Get(HeaderRequestID))
	assert.Equal(t, "trace-abc", w.Header().Get(HeaderTraceID))
}

func TestTraceContextGeneratesIDs(t *testing.T) {
	var td *ctxutil.TraceData
	r := traceRouter(&td)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/stories", nil))

	require.NotNil(t, td)
	assert.NotEmpty(t, td.RequestID)
	// No span and no header: the request ID doubles as the trace ID.
	assert.Equal(t, td.RequestID, td.TraceID)
	assert.Equal(t, td.RequestID, w.Header().Get(HeaderRequestID))
}
