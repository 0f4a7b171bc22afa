package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"image-authenticity-service/internal/services"
)

// HealthHandler handles liveness and readiness probes
type HealthHandler struct {
	service *services.AnalysisService
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(service *services.AnalysisService) *HealthHandler {
	return &HealthHandler{service: service}
}

// Health returns the liveness status of the process
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Ready reports whether the classifier finished loading and whether the
// forensic detectors are operational; the web relay gates UI availability
// on this.
func (h *HealthHandler) Ready(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Ready())
}
