package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoader(t *testing.T) {
	loader := NewLoader("/path/to/config.json")
	assert.NotNil(t, loader)
	assert.Equal(t, "/path/to/config.json", loader.GetConfigPath())
}

func TestLoaderLoad(t *testing.T) {
	t.Run("load default config when file doesn't exist", func(t *testing.T) {
		tmpDir := t.TempDir()
		loader := NewLoader(filepath.Join(tmpDir, "nonexistent.json")).WithEnvFile("")

		cfg, err := loader.Load()
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:8000", cfg.Chat.BaseURL)
		assert.Equal(t, "demo_token", cfg.Chat.AuthToken)
		assert.Equal(t, 24, cfg.Session.MaxAgeHours)
	})

	t.Run("load config from file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.json")

		testConfig := `{
			"chat": {"base_url": "http://agents:9000", "timeout_seconds": 5},
			"session": {"backend": "sqlite", "max_age_hours": 2}
		}`
		require.NoError(t, os.WriteFile(configPath, []byte(testConfig), 0644))

		cfg, err := NewLoader(configPath).WithEnvFile("").Load()
		require.NoError(t, err)
		assert.Equal(t, "http://agents:9000", cfg.Chat.BaseURL)
		assert.Equal(t, 5, cfg.Chat.TimeoutSeconds)
		assert.Equal(t, "demo_token", cfg.Chat.AuthToken, "keys absent from the file keep defaults")
		assert.Equal(t, "sqlite", cfg.Session.Backend)
		assert.Equal(t, 2, cfg.Session.MaxAgeHours)
		assert.Equal(t, "@every 1h", cfg.Session.SweepSchedule)
	})

	t.Run("load tracing collector and redact patterns", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.json")

		testConfig := `{
			"logging": {"redact_patterns": ["tab-[0-9]+"]},
			"tracing": {"enabled": true, "endpoint": "otel:4318", "insecure": true}
		}`
		require.NoError(t, os.WriteFile(configPath, []byte(testConfig), 0644))

		cfg, err := NewLoader(configPath).WithEnvFile("").Load()
		require.NoError(t, err)
		assert.Equal(t, []string{"tab-[0-9]+"}, cfg.Logging.RedactPatterns)
		assert.True(t, cfg.Logging.Redaction)
		assert.Equal(t, "otel:4318", cfg.Tracing.Endpoint)
		assert.True(t, cfg.Tracing.Insecure)
		assert.Equal(t, "ezoverthinking", cfg.Tracing.ServiceName)
	})

	t.Run("set default paths", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.json")
		require.NoError(t, os.WriteFile(configPath, []byte(`{"data_dir": "`+filepath.ToSlash(tmpDir)+`"}`), 0644))

		cfg, err := NewLoader(configPath).WithEnvFile("").Load()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(tmpDir, "sessions"), cfg.Session.Dir)
		assert.Equal(t, filepath.Join(tmpDir, "sessions.db"), cfg.Session.DBPath)
		assert.Equal(t, filepath.Join(tmpDir, "ezoverthinking.log"), cfg.Logging.File)
	})

	t.Run("invalid json", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.json")
		require.NoError(t, os.WriteFile(configPath, []byte(`{nope`), 0644))

		_, err := NewLoader(configPath).WithEnvFile("").Load()
		assert.Error(t, err)
	})
}

func TestLoaderEnvOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")
	require.NoError(t, os.WriteFile(configPath, []byte(`{"chat": {"auth_token": "from-file"}}`), 0644))

	t.Setenv("EZO_CHAT_AUTH_TOKEN", "from-env")
	t.Setenv("EZO_SESSION_BACKEND", "memory")
	t.Setenv("API_BASE_URL", "http://frontend-env:8000")

	cfg, err := NewLoader(configPath).WithEnvFile("").Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Chat.AuthToken)
	assert.Equal(t, "memory", cfg.Session.Backend)
	assert.Equal(t, "http://frontend-env:8000", cfg.Chat.BaseURL)
}

func TestLoaderDotEnv(t *testing.T) {
	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("EZO_SESSION_MAX_AGE_HOURS=6\n"), 0644))

	// Registered first so the variable godotenv sets is removed afterwards.
	t.Setenv("EZO_SESSION_MAX_AGE_HOURS", "")
	require.NoError(t, os.Unsetenv("EZO_SESSION_MAX_AGE_HOURS"))

	cfg, err := NewLoader(filepath.Join(tmpDir, "missing.json")).WithEnvFile(envFile).Load()
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Session.MaxAgeHours)
}

func TestLoaderSave(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "nested", "config.json")
	loader := NewLoader(configPath).WithEnvFile("")

	cfg := DefaultConfig()
	cfg.Chat.BaseURL = "http://saved:8000"
	cfg.Session.Backend = "memory"
	require.NoError(t, loader.Save(cfg))

	loaded, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "http://saved:8000", loaded.Chat.BaseURL)
	assert.Equal(t, "memory", loaded.Session.Backend)
}
