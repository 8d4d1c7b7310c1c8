package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stcam/internal/output"
	"stcam/internal/smartthings"
	"stcam/internal/token"
)

func validConfig() Config {
	return Config{
		Server:   ServerConfig{Host: "0.0.0.0", Port: 8080},
		Database: DatabaseConfig{Path: "./test.db"},
		Security: SecurityConfig{APIKey: "test-key"},
		SmartThings: SmartThingsConfig{
			DeviceID:  "dev-1",
			TokenFile: "./token.txt",
		},
	}
}

func TestConfig_Validate_Defaults(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, smartthings.DefaultAPIBase, cfg.SmartThings.APIBase)
	assert.Equal(t, token.DefaultTokenURL, cfg.SmartThings.TokenURL)
	assert.Equal(t, "./captures", cfg.Capture.OutputDir)
	assert.Equal(t, 3, cfg.Capture.SettleDelaySeconds)
	assert.Equal(t, 30, cfg.Capture.LiveIntervalSeconds)
	assert.Equal(t, output.DefaultPrompt, cfg.Capture.PromptText)
}

func TestConfig_Validate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }},
		{"missing database path", func(c *Config) { c.Database.Path = "" }},
		{"missing api key", func(c *Config) { c.Security.APIKey = "" }},
		{"missing device id", func(c *Config) { c.SmartThings.DeviceID = "" }},
		{"missing token file", func(c *Config) { c.SmartThings.TokenFile = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"server": {"host": "127.0.0.1", "port": 9090},
		"database": {"path": "/var/lib/stcam/stcam.db"},
		"security": {"api_key": "secret"},
		"smartthings": {
			"device_id": "dev-42",
			"token_file": "/etc/stcam/token.txt",
			"client_id": "client",
			"client_secret": "shh"
		},
		"capture": {"output_dir": "/captures", "settle_delay_seconds": 5, "live_interval_seconds": 10},
		"logging": {"format": "text", "level": "debug"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "dev-42", cfg.SmartThings.DeviceID)
	assert.Equal(t, 5, cfg.Capture.SettleDelaySeconds)
	assert.Equal(t, 10, cfg.Capture.LiveIntervalSeconds)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, ErrConfigFileNotFound)
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"server": {"port": 8080}}`), 0o600))

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("STCAM_PORT", "9191")
	t.Setenv("STCAM_API_KEY", "env-key")
	t.Setenv("STCAM_DEVICE_ID", "dev-env")
	t.Setenv("STCAM_LIVE_INTERVAL", "15")
	t.Setenv("STCAM_SAVE_BASE64", "true")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "env-key", cfg.Security.APIKey)
	assert.Equal(t, "dev-env", cfg.SmartThings.DeviceID)
	assert.Equal(t, 15, cfg.Capture.LiveIntervalSeconds)
	assert.True(t, cfg.Capture.SaveBase64)
}

func TestLoadFromEnv_MissingRequired(t *testing.T) {
	t.Setenv("STCAM_API_KEY", "")
	t.Setenv("STCAM_DEVICE_ID", "dev-1")

	_, err := LoadFromEnv()
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("STCAM_TEST_STR", "value")
	t.Setenv("STCAM_TEST_INT", "42")
	t.Setenv("STCAM_TEST_BAD_INT", "nope")
	t.Setenv("STCAM_TEST_BOOL", "1")

	assert.Equal(t, "value", getEnv("STCAM_TEST_STR", "dflt"))
	assert.Equal(t, "dflt", getEnv("STCAM_TEST_UNSET", "dflt"))
	assert.Equal(t, 42, getEnvInt("STCAM_TEST_INT", 7))
	assert.Equal(t, 7, getEnvInt("STCAM_TEST_BAD_INT", 7))
	assert.True(t, getEnvBool("STCAM_TEST_BOOL", false))
	assert.False(t, getEnvBool("STCAM_TEST_UNSET", false))
}
