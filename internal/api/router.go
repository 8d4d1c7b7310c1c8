package api

import (
	"crypto/subtle"
	"log/slog"
	"strings"
	"time"

	"stcam/internal/api/handlers"
	"stcam/internal/api/middleware"
	"stcam/internal/smartthings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// RouterConfig holds dependencies for the API router
type RouterConfig struct {
	Service      handlers.CaptureService
	Store        handlers.CaptureStore
	Scheduler    handlers.LiveController
	TokenManager handlers.TokenManager
	Handle       smartthings.Handle
	LiveInterval time.Duration
	APIKey       string
	Logger       *slog.Logger
}

// NewRouter creates and configures the Gin router
func NewRouter(config RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery(config.Logger))
	router.Use(middleware.Logging(config.Logger))
	router.Use(middleware.ContentType())

	// Health check (no auth)
	healthHandler := handlers.NewHealthHandler()
	router.GET("/health", healthHandler.GetHealth)

	// API v1 routes (with authentication)
	v1 := router.Group("/v1")
	v1.Use(authMiddleware(config.APIKey))
	{
		capturesHandler := handlers.NewCapturesHandler(
			config.Service,
			config.Store,
			config.Handle,
			config.Logger,
		)
		v1.POST("/captures", capturesHandler.CreateCapture)
		v1.GET("/captures", capturesHandler.ListCaptures)
		v1.GET("/captures/:id", capturesHandler.GetCapture)

		deviceHandler := handlers.NewDeviceHandler(
			config.Service,
			config.Handle,
			config.Logger,
		)
		v1.GET("/device", deviceHandler.GetDevice)

		liveHandler := handlers.NewLiveHandler(
			config.Scheduler,
			config.LiveInterval,
			config.Logger,
		)
		v1.POST("/live/start", liveHandler.StartLive)
		v1.POST("/live/stop", liveHandler.StopLive)
		v1.GET("/live", liveHandler.GetLive)

		tokenHandler := handlers.NewTokenHandler(
			config.TokenManager,
			config.Handle,
			config.Logger,
		)
		v1.GET("/token/status", tokenHandler.GetStatus)
		v1.POST("/token/refresh", tokenHandler.RefreshToken)
		v1.POST("/token/exchange", tokenHandler.ExchangeCode)
	}

	return router
}

// authMiddleware verifies API key authentication. A configured key with the
// bcrypt $2 prefix is treated as a hash; anything else is compared directly.
func authMiddleware(apiKey string) gin.HandlerFunc {
	hashed := strings.HasPrefix(apiKey, "$2")
	return func(c *gin.Context) {
		providedKey := c.GetHeader("X-STCam-Key")

		var ok bool
		if hashed {
			ok = bcrypt.CompareHashAndPassword([]byte(apiKey), []byte(providedKey)) == nil
		} else {
			ok = subtle.ConstantTimeCompare([]byte(providedKey), []byte(apiKey)) == 1
		}

		if !ok {
			c.JSON(401, gin.H{
				"error": "Unauthorized",
				"code":  "UNAUTHORIZED",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
