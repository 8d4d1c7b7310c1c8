package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"stcam/internal/capture"
	"stcam/internal/smartthings"
	"stcam/internal/storage"

	"github.com/gin-gonic/gin"
)

// CaptureService is the capture surface the handlers drive
type CaptureService interface {
	Capture(ctx context.Context, h smartthings.Handle) capture.Result
	Capabilities(ctx context.Context, h smartthings.Handle) (*smartthings.Device, error)
}

// CaptureStore is the history subset the handlers read
type CaptureStore interface {
	GetCapture(ctx context.Context, id string) (*storage.CaptureRecord, error)
	ListCaptures(ctx context.Context, limit int) ([]*storage.CaptureRecord, error)
}

// CapturesHandler handles capture requests
type CapturesHandler struct {
	service CaptureService
	store   CaptureStore
	handle  smartthings.Handle
	logger  *slog.Logger
}

// NewCapturesHandler creates a new captures handler
func NewCapturesHandler(service CaptureService, store CaptureStore, handle smartthings.Handle, logger *slog.Logger) *CapturesHandler {
	return &CapturesHandler{
		service: service,
		store:   store,
		handle:  handle,
		logger:  logger,
	}
}

// CreateCapture runs one capture sequence and reports its result
// POST /captures
func (h *CapturesHandler) CreateCapture(c *gin.Context) {
	res := h.service.Capture(c.Request.Context(), h.handle)
	if res.Err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":      res.Err.Error(),
			"code":       res.Outcome(),
			"capture_id": res.CaptureID,
		})
		return
	}

	c.JSON(http.StatusCreated, res)
}

// ListCaptures returns recent capture history, newest first
// GET /captures
func (h *CapturesHandler) ListCaptures(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "limit must be a non-negative integer",
				"code":  "INVALID_REQUEST",
			})
			return
		}
		limit = parsed
	}

	records, err := h.store.ListCaptures(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list captures",
			"component", "api",
			"error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list captures",
			"code":  "INTERNAL_ERROR",
		})
		return
	}

	c.JSON(http.StatusOK, records)
}

// GetCapture returns one capture history row
// GET /captures/:id
func (h *CapturesHandler) GetCapture(c *gin.Context) {
	rec, err := h.store.GetCapture(c.Request.Context(), c.Param("id"))
	if errors.Is(err, storage.ErrCaptureNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Capture not found",
			"code":  "NOT_FOUND",
		})
		return
	}
	if err != nil {
		h.logger.Error("Failed to get capture",
			"component", "api",
			"capture_id", c.Param("id"),
			"error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get capture",
			"code":  "INTERNAL_ERROR",
		})
		return
	}

	c.JSON(http.StatusOK, rec)
}
