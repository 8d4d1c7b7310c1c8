package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// LiveController is the scheduler surface the handlers drive
type LiveController interface {
	Start(interval time.Duration)
	Stop()
	Running() bool
}

// LiveHandler handles live capture start/stop requests
type LiveHandler struct {
	scheduler       LiveController
	defaultInterval time.Duration
	logger          *slog.Logger
}

// NewLiveHandler creates a new live capture handler
func NewLiveHandler(scheduler LiveController, defaultInterval time.Duration, logger *slog.Logger) *LiveHandler {
	return &LiveHandler{
		scheduler:       scheduler,
		defaultInterval: defaultInterval,
		logger:          logger,
	}
}

// StartLive begins repeating captures. Starting while running is a no-op.
// POST /live/start
func (h *LiveHandler) StartLive(c *gin.Context) {
	interval := h.defaultInterval

	// interval override is optional; an empty body keeps the default
	var req struct {
		IntervalSeconds int `json:"interval_seconds"`
	}
	if err := c.ShouldBindJSON(&req); err == nil && req.IntervalSeconds > 0 {
		interval = time.Duration(req.IntervalSeconds) * time.Second
	}

	h.scheduler.Start(interval)
	c.JSON(http.StatusOK, gin.H{
		"running":          true,
		"interval_seconds": int(interval / time.Second),
	})
}

// StopLive stops repeating captures. Stopping while stopped is a no-op.
// POST /live/stop
func (h *LiveHandler) StopLive(c *gin.Context) {
	h.scheduler.Stop()
	c.JSON(http.StatusOK, gin.H{"running": false})
}

// GetLive reports whether live capture is active
// GET /live
func (h *LiveHandler) GetLive(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"running": h.scheduler.Running()})
}
