// Package config loads runtime settings from the environment and optional
// .env files.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/jmcleod/ironkeep/crypto"
)

// Store backends.
const (
	StoreBBolt    = "bbolt"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// DefaultEnvFile is read when Load is called without explicit files. A
// missing default file is not an error.
const DefaultEnvFile = ".env"

var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds every tunable of the CLI.
type Config struct {
	Store         string        `env:"IRONKEEP_STORE" envDefault:"bbolt"`
	DataDir       string        `env:"IRONKEEP_DATA_DIR" envDefault:"./data"`
	PostgresDSN   string        `env:"IRONKEEP_POSTGRES_DSN"`
	KDFIterations int           `env:"IRONKEEP_KDF_ITERATIONS" envDefault:"600000"`
	Issuer        string        `env:"IRONKEEP_ISSUER" envDefault:"Ironkeep"`
	IdleTimeout   time.Duration `env:"IRONKEEP_IDLE_TIMEOUT" envDefault:"5m"`
	LogLevel      string        `env:"IRONKEEP_LOG_LEVEL" envDefault:"info"`
	LogFormat     string        `env:"IRONKEEP_LOG_FORMAT" envDefault:"text"`
}

// Load reads files (or DefaultEnvFile) and the process environment, with the
// process environment taking precedence, and returns a validated Config.
// The process environment itself is never modified.
func Load(files ...string) (Config, error) {
	cfg, err := Read(files...)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Read is Load without validation, for callers that apply overrides first.
func Read(files ...string) (Config, error) {
	environ, err := readEnvFiles(files)
	if err != nil {
		return Config{}, err
	}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			environ[k] = v
		}
	}
	return parse(environ)
}

// Parse builds a validated Config from an explicit variable map. Unset keys
// take their defaults.
func Parse(environ map[string]string) (Config, error) {
	cfg, err := parse(environ)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func parse(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return cfg, nil
}

func readEnvFiles(files []string) (map[string]string, error) {
	optional := len(files) == 0
	if optional {
		files = []string{DefaultEnvFile}
	}
	out := make(map[string]string)
	for _, f := range files {
		vals, err := godotenv.Read(f)
		if err != nil {
			if optional && errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("%w: reading %s: %w", ErrInvalidConfig, f, err)
		}
		for k, v := range vals {
			// earlier files win, matching godotenv.Load
			if _, ok := out[k]; !ok {
				out[k] = v
			}
		}
	}
	return out, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	switch c.Store {
	case StoreBBolt:
		if c.DataDir == "" {
			return fmt.Errorf("%w: IRONKEEP_DATA_DIR is required for the bbolt store", ErrInvalidConfig)
		}
	case StorePostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("%w: IRONKEEP_POSTGRES_DSN is required for the postgres store", ErrInvalidConfig)
		}
	case StoreMemory:
	default:
		return fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, c.Store)
	}
	if err := crypto.ValidateKDFParams(c.KDFParams()); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Issuer == "" {
		return fmt.Errorf("%w: IRONKEEP_ISSUER must not be empty", ErrInvalidConfig)
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("%w: negative idle timeout", ErrInvalidConfig)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, c.LogFormat)
	}
	return nil
}

// KDFParams returns the derivation parameters for new credentials.
func (c Config) KDFParams() crypto.KDFParams {
	p := crypto.DefaultKDFParams()
	p.Iterations = c.KDFIterations
	return p
}

// BoltPath is the database file used by the bbolt store.
func (c Config) BoltPath() string {
	return filepath.Join(c.DataDir, "vault.db")
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("%w: log level %q", ErrInvalidConfig, c.LogLevel)
	}
	return lvl, nil
}

// NewLogger builds the slog handler selected by LogFormat and LogLevel.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	lvl, err := c.Level()
	if err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
