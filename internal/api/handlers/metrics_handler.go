package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/verdad/services/notifier/internal/metrics"
)

// MetricsHandler exposes the in-process metrics snapshot
type MetricsHandler struct {
	metrics *metrics.Metrics
}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler(metricsCollector *metrics.Metrics) *MetricsHandler {
	return &MetricsHandler{metrics: metricsCollector}
}

// GetMetrics returns all counters and timers
func (h *MetricsHandler) GetMetrics(c *gin.Context) {
	counters, timers, uptime := h.metrics.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"uptime_seconds": int64(uptime.Seconds()),
		"counters":       counters,
		"timers":         timers,
	})
}
