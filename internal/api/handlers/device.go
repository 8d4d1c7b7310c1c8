package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"stcam/internal/capture"
	"stcam/internal/smartthings"

	"github.com/gin-gonic/gin"
)

// DeviceHandler exposes the configured camera device and its capabilities
type DeviceHandler struct {
	service CaptureService
	handle  smartthings.Handle
	logger  *slog.Logger
}

// NewDeviceHandler creates a new device handler
func NewDeviceHandler(service CaptureService, handle smartthings.Handle, logger *slog.Logger) *DeviceHandler {
	return &DeviceHandler{
		service: service,
		handle:  handle,
		logger:  logger,
	}
}

// GetDevice returns the device description with its capability list
// GET /device
func (h *DeviceHandler) GetDevice(c *gin.Context) {
	device, err := h.service.Capabilities(c.Request.Context(), h.handle)
	if err != nil {
		h.logger.Error("Failed to fetch device capabilities",
			"component", "api",
			"device_id", h.handle.DeviceID,
			"error", err)

		status := http.StatusBadGateway
		code := "DEVICE_UNAVAILABLE"
		if errors.Is(err, capture.ErrAuthFailed) {
			status = http.StatusUnauthorized
			code = "AUTH_FAILED"
		}
		c.JSON(status, gin.H{
			"error": err.Error(),
			"code":  code,
		})
		return
	}

	c.JSON(http.StatusOK, device)
}
