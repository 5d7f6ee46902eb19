package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Default values applied after loading.
const (
	DefaultPort            = 8080
	DefaultPollIntervalSec = 25
	DefaultTimeoutSec      = 10
)

// Load reads the application configuration from path (or config.yml when
// empty), applies environment overrides for secrets and validates the
// result. A .env file in the working directory is folded into the
// environment first, matching local development setups.
func Load(path string) (*AppConfig, error) {
	_ = godotenv.Load()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	paths := []string{path, "config.yml"}
	var data []byte
	var err error
	for _, p := range paths {
		if p == "" {
			continue
		}
		data, err = os.ReadFile(p)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Secrets come from the environment only.
	cfg.STM.ClientID = os.Getenv("STM_CLIENT_ID")
	cfg.STM.ClientSecret = os.Getenv("STM_CLIENT_SECRET")
	cfg.Directions.APIKey = os.Getenv("MAPS_API_KEY")

	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultPort
	}
	if cfg.Server.Env == "" {
		cfg.Server.Env = "production"
	}
	if cfg.STM.VehicleFeedFormat == "" {
		cfg.STM.VehicleFeedFormat = "json"
	}
	if cfg.Poll.IntervalSeconds == 0 {
		cfg.Poll.IntervalSeconds = DefaultPollIntervalSec
	}
	if cfg.Poll.TimeoutSeconds == 0 {
		cfg.Poll.TimeoutSeconds = DefaultTimeoutSec
	}

	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}
