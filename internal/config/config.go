package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/danielpatrickdp/creature-colony/internal/colony"
	"github.com/danielpatrickdp/creature-colony/internal/creature"
	"github.com/danielpatrickdp/creature-colony/internal/quantum"
	"github.com/danielpatrickdp/creature-colony/internal/strategy"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Environment overrides applied after the file is read.
const (
	EnvDB       = "CREATURE_DB"
	EnvListen   = "CREATURE_LISTEN"
	EnvMetrics  = "CREATURE_METRICS"
	EnvLogLevel = "CREATURE_LOG_LEVEL"
)

// #region config

// Config is the full runtime configuration of a creature process.
type Config struct {
	DB       string `yaml:"db" validate:"required"`
	Listen   string `yaml:"listen" validate:"required,hostname_port"`
	Metrics  string `yaml:"metrics" validate:"omitempty,hostname_port"` // empty disables the endpoint
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`

	Colony colony.Config         `yaml:"colony"`
	Engine quantum.Config        `yaml:"engine"`
	Policy strategy.PolicyConfig `yaml:"policy"`
}

// Default returns the reference configuration.
func Default() Config {
	return Config{
		DB:       "creature.db",
		Listen:   "localhost:50061",
		Metrics:  "localhost:9464",
		LogLevel: "info",
		Colony:   colony.DefaultConfig(),
		Engine:   quantum.DefaultConfig(),
		Policy:   strategy.DefaultPolicyConfig(),
	}
}

// Service returns the domain parameters for creature.Open.
func (c Config) Service() creature.Config {
	return creature.Config{Colony: c.Colony, Engine: c.Engine, Policy: c.Policy}
}

// #endregion config

// #region load

var validate = validator.New()

// Load reads path over the defaults, applies environment overrides and validates
// the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.DB = envOr(EnvDB, c.DB)
	c.Listen = envOr(EnvListen, c.Listen)
	c.Metrics = envOr(EnvMetrics, c.Metrics)
	c.LogLevel = envOr(EnvLogLevel, c.LogLevel)
}

// Validate checks field constraints, including the nested colony, engine and policy sections.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid config: %s failed %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// #endregion load

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
