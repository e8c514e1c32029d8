package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/ironkeep/crypto"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, StoreBBolt, cfg.Store)
	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, 600_000, cfg.KDFIterations)
	assert.Equal(t, "Ironkeep", cfg.Issuer)
	assert.Equal(t, 5*time.Minute, cfg.IdleTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, filepath.Join("data", "vault.db"), cfg.BoltPath())
	assert.Equal(t, crypto.DefaultKDFParams(), cfg.KDFParams())
}

func TestParse_Overrides(t *testing.T) {
	cfg, err := Parse(map[string]string{
		"IRONKEEP_STORE":          "postgres",
		"IRONKEEP_POSTGRES_DSN":   "postgres://localhost/ironkeep",
		"IRONKEEP_KDF_ITERATIONS": "1000000",
		"IRONKEEP_ISSUER":         "Acme",
		"IRONKEEP_IDLE_TIMEOUT":   "90s",
		"IRONKEEP_LOG_LEVEL":      "debug",
		"IRONKEEP_LOG_FORMAT":     "json",
	})
	require.NoError(t, err)

	assert.Equal(t, StorePostgres, cfg.Store)
	assert.Equal(t, "postgres://localhost/ironkeep", cfg.PostgresDSN)
	assert.Equal(t, 1_000_000, cfg.KDFParams().Iterations)
	assert.Equal(t, "Acme", cfg.Issuer)
	assert.Equal(t, 90*time.Second, cfg.IdleTimeout)
	lvl, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		environ map[string]string
	}{
		{"UnknownStore", map[string]string{"IRONKEEP_STORE": "sqlite"}},
		{"PostgresWithoutDSN", map[string]string{"IRONKEEP_STORE": "postgres"}},
		{"LowIterations", map[string]string{"IRONKEEP_KDF_ITERATIONS": "100000"}},
		{"NonNumericIterations", map[string]string{"IRONKEEP_KDF_ITERATIONS": "lots"}},
		{"BadDuration", map[string]string{"IRONKEEP_IDLE_TIMEOUT": "soon"}},
		{"NegativeIdle", map[string]string{"IRONKEEP_IDLE_TIMEOUT": "-1m"}},
		{"BadLogLevel", map[string]string{"IRONKEEP_LOG_LEVEL": "loud"}},
		{"BadLogFormat", map[string]string{"IRONKEEP_LOG_FORMAT": "xml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.environ)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestParse_LowIterationsIsKDFConfig(t *testing.T) {
	_, err := Parse(map[string]string{"IRONKEEP_KDF_ITERATIONS": "1000"})
	assert.ErrorIs(t, err, crypto.ErrKDFConfig)
}

func TestParse_MemoryStore(t *testing.T) {
	cfg, err := Parse(map[string]string{"IRONKEEP_STORE": "memory", "IRONKEEP_IDLE_TIMEOUT": "0"})
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Zero(t, cfg.IdleTimeout)
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ironkeep.env")
	require.NoError(t, os.WriteFile(path, []byte("IRONKEEP_ISSUER=FromFile\nIRONKEEP_LOG_LEVEL=warn\n"), 0o600))

	t.Setenv("IRONKEEP_LOG_LEVEL", "error")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "FromFile", cfg.Issuer)
	assert.Equal(t, "error", cfg.LogLevel, "process environment wins over the file")

	_, ok := os.LookupEnv("IRONKEEP_ISSUER")
	assert.False(t, ok, "loading must not leak file values into the process environment")
}

func TestLoad_MissingFiles(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := Load()
	assert.NoError(t, err, "a missing default .env is ignored")

	_, err = Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewLogger(t *testing.T) {
	t.Run("JSON", func(t *testing.T) {
		cfg, err := Parse(map[string]string{"IRONKEEP_LOG_FORMAT": "json", "IRONKEEP_LOG_LEVEL": "warn"})
		require.NoError(t, err)
		var buf bytes.Buffer
		logger := cfg.NewLogger(&buf)
		logger.Info("hidden")
		logger.Warn("shown", "k", "v")
		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), `"msg":"shown"`)
	})

	t.Run("Text", func(t *testing.T) {
		cfg, err := Parse(map[string]string{})
		require.NoError(t, err)
		var buf bytes.Buffer
		cfg.NewLogger(&buf).Info("hello", "k", "v")
		assert.Contains(t, buf.String(), "msg=hello")
		assert.Contains(t, buf.String(), "k=v")
	})
}

func TestRead_DefersValidation(t *testing.T) {
	t.Setenv("IRONKEEP_STORE", "postgres")
	t.Setenv("IRONKEEP_POSTGRES_DSN", "")

	cfg, err := Read(filepath.Join(t.TempDir(), "none.env"))
	assert.ErrorIs(t, err, ErrInvalidConfig, "an explicit missing file still fails")

	t.Chdir(t.TempDir())
	cfg, err = Read()
	require.NoError(t, err)
	assert.Equal(t, StorePostgres, cfg.Store)
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg.PostgresDSN = "postgres://localhost/ironkeep"
	assert.NoError(t, cfg.Validate())
}
