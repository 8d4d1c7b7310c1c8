package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"stcam/internal/output"
	"stcam/internal/smartthings"
	"stcam/internal/token"
)

var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrInvalidConfig      = errors.New("invalid configuration")
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `json:"server"`
	Database    DatabaseConfig    `json:"database"`
	Security    SecurityConfig    `json:"security"`
	SmartThings SmartThingsConfig `json:"smartthings"`
	Capture     CaptureConfig     `json:"capture"`
	Telegram    TelegramConfig    `json:"telegram"`
	Logging     LoggingConfig     `json:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// DatabaseConfig contains capture history database settings
type DatabaseConfig struct {
	Path string `json:"path"`
}

// SecurityConfig contains security settings. The API key may be stored as a
// bcrypt hash (recognized by its $2 prefix) instead of plain text.
type SecurityConfig struct {
	APIKey string `json:"api_key"`
}

// SmartThingsConfig contains SmartThings cloud API settings
type SmartThingsConfig struct {
	APIBase  string `json:"api_base"`
	TokenURL string `json:"token_url"`
	DeviceID string `json:"device_id"`

	// TokenFile is the credential record path; the client_id/client_secret
	// fields seed the record when the file does not carry them
	TokenFile    string `json:"token_file"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`

	// AuthCode and RedirectURI enable the one-time authorization code
	// exchange on first run
	AuthCode    string `json:"auth_code"`
	RedirectURI string `json:"redirect_uri"`

	RequestTimeoutSeconds int `json:"request_timeout_seconds"`
}

// CaptureConfig contains capture sequence settings
type CaptureConfig struct {
	OutputDir           string `json:"output_dir"`
	SettleDelaySeconds  int    `json:"settle_delay_seconds"`
	LiveIntervalSeconds int    `json:"live_interval_seconds"`
	PromptText          string `json:"prompt_text"`
	SaveBase64          bool   `json:"save_base64"`
}

// TelegramConfig contains optional capture notification settings; an empty
// token disables the notifier
type TelegramConfig struct {
	Token  string `json:"token"`
	ChatID int64  `json:"chat_id"`
}

// LoggingConfig contains log output settings
type LoggingConfig struct {
	Format string `json:"format"` // "json" or "text"
	Level  string `json:"level"`  // "debug", "info", "warn", "error"
}

// Validate validates the configuration and applies defaults
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: invalid server port", ErrInvalidConfig)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("%w: database path is required", ErrInvalidConfig)
	}

	if c.Security.APIKey == "" {
		return fmt.Errorf("%w: API key is required", ErrInvalidConfig)
	}

	if c.SmartThings.DeviceID == "" {
		return fmt.Errorf("%w: SmartThings device ID is required", ErrInvalidConfig)
	}

	if c.SmartThings.TokenFile == "" {
		return fmt.Errorf("%w: token file path is required", ErrInvalidConfig)
	}

	if c.SmartThings.APIBase == "" {
		c.SmartThings.APIBase = smartthings.DefaultAPIBase
	}
	if c.SmartThings.TokenURL == "" {
		c.SmartThings.TokenURL = token.DefaultTokenURL
	}
	if c.Capture.OutputDir == "" {
		c.Capture.OutputDir = "./captures"
	}
	if c.Capture.SettleDelaySeconds <= 0 {
		c.Capture.SettleDelaySeconds = 3
	}
	if c.Capture.LiveIntervalSeconds <= 0 {
		c.Capture.LiveIntervalSeconds = 30
	}
	if c.Capture.PromptText == "" {
		c.Capture.PromptText = output.DefaultPrompt
	}

	return nil
}

// Load loads configuration from a JSON file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigFileNotFound
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadFromEnv loads configuration from environment variables
// This is useful for containerized deployments
func LoadFromEnv() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host: getEnv("STCAM_HOST", "0.0.0.0"),
			Port: getEnvInt("STCAM_PORT", 8080),
		},
		Database: DatabaseConfig{
			Path: getEnv("STCAM_DB_PATH", "./stcam.db"),
		},
		Security: SecurityConfig{
			APIKey: getEnv("STCAM_API_KEY", ""),
		},
		SmartThings: SmartThingsConfig{
			APIBase:               getEnv("STCAM_API_BASE", smartthings.DefaultAPIBase),
			TokenURL:              getEnv("STCAM_TOKEN_URL", token.DefaultTokenURL),
			DeviceID:              getEnv("STCAM_DEVICE_ID", ""),
			TokenFile:             getEnv("STCAM_TOKEN_FILE", "./token.txt"),
			ClientID:              getEnv("STCAM_CLIENT_ID", ""),
			ClientSecret:          getEnv("STCAM_CLIENT_SECRET", ""),
			AuthCode:              getEnv("STCAM_AUTH_CODE", ""),
			RedirectURI:           getEnv("STCAM_REDIRECT_URI", ""),
			RequestTimeoutSeconds: getEnvInt("STCAM_REQUEST_TIMEOUT", 30),
		},
		Capture: CaptureConfig{
			OutputDir:           getEnv("STCAM_OUTPUT_DIR", "./captures"),
			SettleDelaySeconds:  getEnvInt("STCAM_SETTLE_DELAY", 3),
			LiveIntervalSeconds: getEnvInt("STCAM_LIVE_INTERVAL", 30),
			PromptText:          getEnv("STCAM_PROMPT_TEXT", ""),
			SaveBase64:          getEnvBool("STCAM_SAVE_BASE64", false),
		},
		Telegram: TelegramConfig{
			Token:  getEnv("STCAM_TELEGRAM_TOKEN", ""),
			ChatID: getEnvInt64("STCAM_TELEGRAM_CHAT_ID", 0),
		},
		Logging: LoggingConfig{
			Format: getEnv("STCAM_LOG_FORMAT", "json"),
			Level:  getEnv("STCAM_LOG_LEVEL", "info"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}
