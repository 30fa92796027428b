// Package config содержит логику чтения конфигурации консоли factorydesk.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации консоли factorydesk.
type Config struct {
	RunAddress  string `env:"RUN_ADDRESS"`
	DatabaseURI string `env:"DATABASE_URI"`

	StatevAddress string `env:"STATEV_ADDRESS"`
	StatevAPIKey  string `env:"STATEV_API_KEY"`
	FactoryID     string `env:"FACTORY_ID"`
	HomeVban      string `env:"HOME_VBAN" envDefault:"409856"`

	SyncAddress string `env:"SYNC_ADDRESS"`
	SyncAPIKey  string `env:"SYNC_API_KEY"`
	SyncTable   string `env:"SYNC_TABLE" envDefault:"kv_store"`
	WorkspaceID string `env:"WORKSPACE_ID" envDefault:"default"`

	ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL" envDefault:"10m"`
	StartupDelay      time.Duration `env:"STARTUP_DELAY" envDefault:"5s"`
	SyncInterval      time.Duration `env:"SYNC_INTERVAL" envDefault:"5s"`
	TestMode          bool          `env:"TEST_MODE"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envStatevAddress := cfg.StatevAddress
	envSyncAddress := cfg.SyncAddress

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.StatevAddress, "s", "", "transaction feed address")
	flag.StringVar(&cfg.SyncAddress, "r", "", "remote sync storage address")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envStatevAddress != "" {
		cfg.StatevAddress = envStatevAddress
	}
	if envSyncAddress != "" {
		cfg.SyncAddress = envSyncAddress
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	return cfg, nil
}
