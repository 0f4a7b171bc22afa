package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"image-authenticity-service/internal/models"
	"image-authenticity-service/internal/services"
)

// ModelHandler handles classifier model listing requests
type ModelHandler struct {
	service *services.AnalysisService
}

// NewModelHandler creates a new model handler
func NewModelHandler(service *services.AnalysisService) *ModelHandler {
	return &ModelHandler{service: service}
}

// GetModels returns the list of loaded ensemble models
func (h *ModelHandler) GetModels(c *gin.Context) {
	c.JSON(http.StatusOK, models.ModelListResponse{
		Models: h.service.ModelNames(),
	})
}
