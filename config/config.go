// Package config loads carshop settings from an optional YAML file and
// CARSHOP_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

// EnvPrefix prefixes every environment override, e.g. CARSHOP_STORE_DRIVER.
const EnvPrefix = "CARSHOP"

// Config holds all application configuration.
type Config struct {
	Store      StoreConfig `mapstructure:"store"`
	Log        LogConfig   `mapstructure:"log"`
	Catalog    string      `mapstructure:"catalog"`
	SeedUsers  []SeedUser  `mapstructure:"seed_users" validate:"dive"`
	BcryptCost int         `mapstructure:"bcrypt_cost" validate:"min=4,max=31"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=memory sqlite"`
	// DSN is the sqlite database path. ":memory:" keeps everything in RAM.
	DSN string `mapstructure:"dsn" validate:"required_if=Driver sqlite"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Output string `mapstructure:"output" validate:"required"`
}

type SeedUser struct {
	Username string `mapstructure:"username" validate:"required"`
	Password string `mapstructure:"password" validate:"required"`
	Role     string `mapstructure:"role" validate:"required,oneof=ADMIN MANAGER CLIENT"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.dsn", ":memory:")
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.output", "stderr")
	v.SetDefault("catalog", "")
	v.SetDefault("bcrypt_cost", bcrypt.DefaultCost)
	v.SetDefault("seed_users", []map[string]any{
		{"username": "admin", "password": "admin", "role": "ADMIN"},
		{"username": "manager", "password": "manager", "role": "MANAGER"},
		{"username": "user", "password": "user", "role": "CLIENT"},
	})
}

// Load reads the config file at path (skipped when path is empty), applies
// environment overrides and validates the result. Environment variables take
// precedence over the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and that seed usernames are unique.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	seen := make(map[string]bool, len(c.SeedUsers))
	for _, u := range c.SeedUsers {
		if seen[u.Username] {
			return errors.New("config validation failed: duplicate seed user " + u.Username)
		}
		seen[u.Username] = true
	}
	return nil
}
