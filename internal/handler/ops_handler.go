package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-timetable-api/internal/service"
)

const defaultReadyTimeout = 2 * time.Second

// ReadinessCheck probes one backing dependency.
type ReadinessCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

// OpsHandler serves liveness, readiness and metrics endpoints.
type OpsHandler struct {
	metrics *service.MetricsService
	checks  []ReadinessCheck
	timeout time.Duration
}

// NewOpsHandler constructs an ops handler. Checks run in order on /ready.
func NewOpsHandler(metrics *service.MetricsService, checks ...ReadinessCheck) *OpsHandler {
	return &OpsHandler{metrics: metrics, checks: checks, timeout: defaultReadyTimeout}
}

// Health godoc
// @Summary Liveness probe
// @Tags Ops
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *OpsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready godoc
// @Summary Readiness probe
// @Tags Ops
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /ready [get]
func (h *OpsHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()
	for _, check := range h.checks {
		if check.Ping == nil {
			continue
		}
		if err := check.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "component": check.Name})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Prometheus serves the scrape endpoint.
func (h *OpsHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}
