package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.Env == "" {
		cfg.Env = os.Getenv("NODE_ENV")
	}
	if cfg.Env == "" {
		cfg.Env = os.Getenv("ENV")
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Env == "" {
		cfg.Env = "development"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Replication.AdapterTimeout == 0 {
		cfg.Replication.AdapterTimeout = 5 * time.Second
	}
	if cfg.Replication.NotificationTimeout == 0 {
		cfg.Replication.NotificationTimeout = 5 * time.Second
	}
	if cfg.Replication.MaxRetryAttempts == 0 {
		cfg.Replication.MaxRetryAttempts = 3
	}
	if cfg.Replication.RetryDelay == 0 {
		cfg.Replication.RetryDelay = time.Second
	}
	if cfg.Replication.PropagationDelay == nil {
		defaultDelay := 15 * time.Second
		cfg.Replication.PropagationDelay = &defaultDelay
	}

	for i := range cfg.Adapters {
		if cfg.Adapters[i].PublishPath == "" {
			cfg.Adapters[i].PublishPath = "/publishEvent"
		}
		if cfg.Adapters[i].SubscribePath == "" {
			cfg.Adapters[i].SubscribePath = "/subscribe"
		}
		if cfg.Adapters[i].HealthPath == "" {
			cfg.Adapters[i].HealthPath = "/health"
		}
	}

	if len(cfg.Internal.EventTypes) == 0 {
		cfg.Internal.EventTypes = []string{"*"}
	}
	if len(cfg.Internal.Metadata) == 0 {
		cfg.Internal.Metadata = []string{"sbx"}
	}
}
