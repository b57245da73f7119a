// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"

	"github.com/MRamiBalles/medsim/internal/engine"
	"github.com/MRamiBalles/medsim/internal/platform/optimization"
)

// Prefix is prepended to every environment variable.
const Prefix = "MEDSIM_"

// Store backends accepted in MEDSIM_STORE.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StoreBolt     = "bolt"
	StorePostgres = "postgres"
)

// Config is the full server configuration.
type Config struct {
	Addr         string `env:"ADDR"`
	Store        string `env:"STORE"`
	SQLitePath   string `env:"SQLITE_PATH"`
	BoltPath     string `env:"BOLT_PATH"`
	DatabaseURL  string `env:"DATABASE_URL"`
	CasesPath    string `env:"CASES_PATH"`
	Seed         int64  `env:"SEED"` // 0 picks a random seed
	Mode         string `env:"MODE"`
	OtelEndpoint string `env:"OTEL_ENDPOINT"`
	Tuning       string `env:"TUNING"` // default, stress or low

	Net optimization.Config `envPrefix:"NET_"`
	Sim engine.Settings     `envPrefix:"SIM_"`
}

// Default returns the configuration used when no variable is set.
func Default() Config {
	return Config{
		Addr:       ":8080",
		Store:      StoreSQLite,
		SQLitePath: "medsim.db",
		BoltPath:   "medsim.bolt",
		Mode:       "shift",
		Tuning:     "default",
		Net:        *optimization.DefaultConfig(),
		Sim:        engine.DefaultSettings(),
	}
}

// ParseEnv loads configuration from environment variables into target.
// Fields whose variable is unset keep their current value.
func ParseEnv(target any) error {
	if err := env.ParseWithOptions(target, env.Options{Prefix: Prefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load returns Default overlaid with the environment. The tuning profile is
// resolved first so individual NET_ variables still override it.
func Load() (Config, error) {
	cfg := Default()
	if name, ok := os.LookupEnv(Prefix + "TUNING"); ok {
		cfg.Tuning = name
		cfg.Net = *optimization.Profile(name)
	}
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects combinations the server cannot start with.
func (c Config) Validate() error {
	switch c.Store {
	case StoreMemory, StoreSQLite, StoreBolt:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("%sDATABASE_URL is required for the postgres store", Prefix)
		}
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	if c.Mode != "shift" && c.Mode != "training" {
		return fmt.Errorf("unknown mode %q", c.Mode)
	}
	return nil
}

// Exitf writes a formatted error message to stderr and exits with code 1.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
