package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"stcam/internal/smartthings"
	"stcam/internal/token"

	"github.com/gin-gonic/gin"
)

// TokenManager is the token lifecycle surface the handlers drive. Status
// responses never echo secret material.
type TokenManager interface {
	Refresh(ctx context.Context) error
	ExchangeCode(ctx context.Context, code, redirectURI string) error
	CurrentStatus() token.Status
	Probe(ctx context.Context, h smartthings.Handle) error
}

// TokenHandler handles token lifecycle requests
type TokenHandler struct {
	manager TokenManager
	handle  smartthings.Handle
	logger  *slog.Logger
}

// NewTokenHandler creates a new token handler
func NewTokenHandler(manager TokenManager, handle smartthings.Handle, logger *slog.Logger) *TokenHandler {
	return &TokenHandler{
		manager: manager,
		handle:  handle,
		logger:  logger,
	}
}

// GetStatus reports the token manager state. With ?probe=true the current
// access token is checked against the device status endpoint.
// GET /token/status
func (h *TokenHandler) GetStatus(c *gin.Context) {
	status := h.manager.CurrentStatus()
	resp := gin.H{"token": status}

	if c.Query("probe") == "true" {
		err := h.manager.Probe(c.Request.Context(), h.handle)
		resp["valid"] = err == nil
		if err != nil {
			resp["probe_error"] = err.Error()
		}
	}

	c.JSON(http.StatusOK, resp)
}

// RefreshToken forces one token refresh
// POST /token/refresh
func (h *TokenHandler) RefreshToken(c *gin.Context) {
	if err := h.manager.Refresh(c.Request.Context()); err != nil {
		h.logger.Error("Manual token refresh failed",
			"component", "api",
			"error", err)
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "Token expired, refresh failed: check credentials",
			"code":  "REFRESH_FAILED",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": h.manager.CurrentStatus()})
}

// ExchangeCode performs the one-time authorization code exchange
// POST /token/exchange
func (h *TokenHandler) ExchangeCode(c *gin.Context) {
	var req struct {
		Code        string `json:"code" binding:"required"`
		RedirectURI string `json:"redirect_uri" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"code":    "INVALID_REQUEST",
			"details": err.Error(),
		})
		return
	}

	if err := h.manager.ExchangeCode(c.Request.Context(), req.Code, req.RedirectURI); err != nil {
		h.logger.Error("Authorization code exchange failed",
			"component", "api",
			"error", err)
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "Authorization code exchange failed",
			"code":  "EXCHANGE_FAILED",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": h.manager.CurrentStatus()})
}
