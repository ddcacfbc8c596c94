package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pandoapps/videoSoryBoard/internal/observability"
)

// Metrics records API latency by route template. Probe and scrape routes are skipped.
func Metrics(m *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil || quietRoute(c.Request.URL.Path) {
			c.Next()
			return
		}
		m.ApiInflightInc()
		start := time.Now()
		c.Next()
		m.ApiInflightDec()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveAPI(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

func quietRoute(path string) bool {
	return path == "/healthcheck" || path == "/metrics"
}
