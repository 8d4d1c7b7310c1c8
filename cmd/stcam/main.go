package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stcam/config"
	"stcam/internal/api"
	"stcam/internal/capture"
	"stcam/internal/logging"
	"stcam/internal/notify"
	"stcam/internal/output"
	"stcam/internal/smartthings"
	"stcam/internal/storage/sqlite"
	"stcam/internal/token"
)

const (
	shutdownTimeout   = 10 * time.Second
	defaultConfigPath = "config.json"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	// Parse command-line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	useEnv := flag.Bool("env", false, "Load configuration from environment variables")
	flag.Parse()

	// Load configuration
	var cfg *config.Config
	var err error

	if *useEnv {
		cfg, err = config.LoadFromEnv()
	} else {
		cfg, err = config.Load(*configPath)
	}

	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewLogger(logging.LoggerConfig{
		Format: cfg.Logging.Format,
		Level:  logging.ParseLevel(cfg.Logging.Level),
	})

	if err := os.MkdirAll(cfg.Capture.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Initialize capture history database
	logger.Info("Initializing SQLite database", "path", cfg.Database.Path)
	db, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	// SmartThings API client and token manager
	client := smartthings.NewClient(time.Duration(cfg.SmartThings.RequestTimeoutSeconds)*time.Second, logger)
	manager, err := token.NewManager(token.ManagerConfig{
		TokenURL:     cfg.SmartThings.TokenURL,
		StorePath:    cfg.SmartThings.TokenFile,
		ClientID:     cfg.SmartThings.ClientID,
		ClientSecret: cfg.SmartThings.ClientSecret,
		AuthCode:     cfg.SmartThings.AuthCode,
		RedirectURI:  cfg.SmartThings.RedirectURI,
	}, client, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize token manager: %w", err)
	}

	handle := smartthings.Handle{
		DeviceID: cfg.SmartThings.DeviceID,
		APIBase:  cfg.SmartThings.APIBase,
	}

	// Capture controller with post-processing
	controller := capture.NewController(capture.ControllerConfig{
		SettleDelay: time.Duration(cfg.Capture.SettleDelaySeconds) * time.Second,
		OutputDir:   cfg.Capture.OutputDir,
	}, client, manager, capture.RealClock{}, logger)
	controller.SetWriter(output.NewWriter(cfg.Capture.OutputDir, cfg.Capture.PromptText, cfg.Capture.SaveBase64))
	controller.SetRecorder(db)

	if cfg.Telegram.Token != "" {
		notifier, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize Telegram notifier: %w", err)
		}
		controller.SetNotifier(notifier)
		logger.Info("Telegram notifications enabled", "chat_id", cfg.Telegram.ChatID)
	}

	// Live capture scheduler
	liveInterval := time.Duration(cfg.Capture.LiveIntervalSeconds) * time.Second
	scheduler := capture.NewScheduler(controller, handle, capture.RealClock{}, logger, nil)

	// REST API server
	router := api.NewRouter(api.RouterConfig{
		Service:      controller,
		Store:        db,
		Scheduler:    scheduler,
		TokenManager: manager,
		Handle:       handle,
		LiveInterval: liveInterval,
		APIKey:       cfg.Security.APIKey,
		Logger:       logger,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // a capture blocks through two settle delays
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server",
			"host", cfg.Server.Host,
			"port", cfg.Server.Port)
		serverErrors <- server.ListenAndServe()
	}()

	// Wait for interrupt signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info("Starting graceful shutdown", "signal", sig.String())

		// Stop live capture; an in-progress capture runs to completion
		scheduler.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		logger.Info("Graceful shutdown complete")
	}

	return nil
}
