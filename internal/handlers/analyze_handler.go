package handlers

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"image-authenticity-service/internal/imaging"
	"image-authenticity-service/internal/models"
	"image-authenticity-service/internal/services"
)

// AnalyzeHandler handles image analysis requests
type AnalyzeHandler struct {
	service  *services.AnalysisService
	validate *validator.Validate
}

// NewAnalyzeHandler creates a new analyze handler
func NewAnalyzeHandler(service *services.AnalysisService) *AnalyzeHandler {
	return &AnalyzeHandler{
		service:  service,
		validate: validator.New(),
	}
}

// Analyze handles multipart image uploads on the "file" field
func (h *AnalyzeHandler) Analyze(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: "Failed to get file from form: " + err.Error(),
		})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error: "Failed to open file: " + err.Error(),
		})
		return
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error: "Failed to read file: " + err.Error(),
		})
		return
	}

	h.runAnalysis(c, data, file.Filename)
}

// AnalyzeBase64 handles JSON requests carrying a base64-encoded image
func (h *AnalyzeHandler) AnalyzeBase64(c *gin.Context) {
	var req models.AnalyzeBase64Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: "Invalid request body: " + err.Error(),
		})
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: "Validation failed: " + err.Error(),
		})
		return
	}

	payload := req.ImageBase64
	// Tolerate data URL prefixes from browser callers
	if idx := strings.Index(payload, ","); idx != -1 {
		payload = payload[idx+1:]
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: "Failed to decode base64: " + err.Error(),
		})
		return
	}

	h.runAnalysis(c, data, req.Filename)
}

func (h *AnalyzeHandler) runAnalysis(c *gin.Context, data []byte, filename string) {
	result, err := h.service.Analyze(c.Request.Context(), data, filename)
	if err != nil {
		c.JSON(statusForError(err), models.ErrorResult{
			ID:    result.ID,
			Error: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, result)
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, imaging.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, imaging.ErrDecode):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
