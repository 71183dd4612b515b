package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultUpdateTimeout - default messages updates timeout.
const DefaultUpdateTimeout = 3

// Config - bot configuration, YAML file plus environment overrides.
type Config struct {
	Token      string `yaml:"token" env:"RAIDWATCH_TOKEN"`
	UpdateTout int    `yaml:"update_timeout" env:"UPDATE_TIMEOUT"`
	DebugLevel int    `yaml:"debug_level" env:"RAIDWATCH_DEBUG"`

	Storage   string `yaml:"storage" env:"RAIDWATCH_STORAGE" env-default:"badger"`
	BadgerDir string `yaml:"badger_dir" env:"RAIDWATCH_BADGER_DIR" env-default:"./raidwatch-db"`
	RedisAddr string `yaml:"redis_addr" env:"RAIDWATCH_REDIS_ADDR" env-default:"localhost:6379"`
	RedisPass string `yaml:"redis_pass" env:"RAIDWATCH_REDIS_PASS"`
	RedisDB   int    `yaml:"redis_db" env:"RAIDWATCH_REDIS_DB"`

	ExcludedHandles []string      `yaml:"excluded_handles" env:"RAIDWATCH_EXCLUDED" env-separator:","`
	AdWords         []string      `yaml:"ad_words" env:"RAIDWATCH_AD_WORDS" env-separator:","`
	PlatformDomains []string      `yaml:"platform_domains" env:"RAIDWATCH_DOMAINS" env-separator:","`
	ReservedPaths   []string      `yaml:"reserved_paths" env:"RAIDWATCH_RESERVED_PATHS" env-separator:","`
	StoreTimeout    time.Duration `yaml:"store_timeout" env:"RAIDWATCH_STORE_TIMEOUT" env-default:"5s"`
}

// loadConfig - fill config from an optional YAML file and the
// environment. Priority: -config flag > CONFIG_PATH env > env only.
func loadConfig() (Config, error) {
	var path string

	flag.StringVar(&path, "config", "", "path to config file")
	flag.Parse()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}

	cfg := Config{}

	if path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("read config %q: %w", path, err)
		}
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return Config{}, fmt.Errorf("read env: %w", err)
		}
	}

	if cfg.Token == "" {
		return Config{}, fmt.Errorf("RAIDWATCH_TOKEN is required")
	}

	if cfg.UpdateTout <= 0 {
		cfg.UpdateTout = DefaultUpdateTimeout
	}

	return cfg, nil
}
