package config

import "time"

// AppConfig represents the top-level configuration.
type AppConfig struct {
	// Env is the deployment environment: "production", "development",
	// or "test". It is resolved from the config file if set, otherwise
	// from NODE_ENV or ENV in the process environment, defaulting to
	// "development". It gates the engine's fail-fast-vs-degrade
	// behavior at startup.
	Env         string            `yaml:"env"`
	Server      ServerConfig      `yaml:"server"`
	Redis       RedisConfig       `yaml:"redis"`
	Logging     LoggingConfig     `yaml:"logging"`
	Adapters    []AdapterConfig   `yaml:"adapters"`
	Replication ReplicationConfig `yaml:"replication"`
	Internal    InternalSubConfig `yaml:"internalSubscription"`
}

// IsProduction reports whether the engine should apply production
// fail-fast semantics: fail to start rather than degrade on a cache or
// bootstrap failure.
func (c *AppConfig) IsProduction() bool {
	return c.Env == "production"
}

// ShouldFailFast reports whether bootstrap should abort on zero
// healthy adapters rather than degrade. Production always fails fast;
// Replication.BootstrapFailFast lets a non-production deployment opt
// into the same behavior.
func (c *AppConfig) ShouldFailFast() bool {
	return c.IsProduction() || c.Replication.BootstrapFailFast
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port    int    `yaml:"port"`
	BaseURL string `yaml:"baseUrl"`
}

// RedisConfig holds connection settings for the set cache backend.
type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// AdapterConfig describes a single ledger adapter the distributor
// fans events out to.
type AdapterConfig struct {
	Name          string `yaml:"name"          mapstructure:"name"`
	ChainID       string `yaml:"chainId"       mapstructure:"chainId"`
	BaseURL       string `yaml:"baseUrl"       mapstructure:"baseUrl"`
	PublishPath   string `yaml:"publishPath"   mapstructure:"publishPath"`
	SubscribePath string `yaml:"subscribePath" mapstructure:"subscribePath"`
	HealthPath    string `yaml:"healthPath"    mapstructure:"healthPath"`
}

// ReplicationConfig holds timing and retry knobs shared across the
// adapter client, publisher, and replicator.
type ReplicationConfig struct {
	AdapterTimeout      time.Duration `yaml:"adapterTimeout"`
	NotificationTimeout time.Duration `yaml:"notificationTimeout"`
	MaxRetryAttempts    int           `yaml:"maxRetryAttempts"`
	RetryDelay          time.Duration `yaml:"retryDelay"`
	// PropagationDelay is a pointer so applyDefaults can tell an unset
	// field apart from an explicit replicationDelayMs=0 — the latter is
	// a valid test configuration, not something to default away.
	PropagationDelay  *time.Duration `yaml:"propagationDelay"`
	BootstrapFailFast bool           `yaml:"bootstrapFailFast"`
}

// PropagationDelayOrZero returns the configured propagation delay, or
// zero if it was never set (e.g. a config built directly in tests
// without going through Load/applyDefaults).
func (r ReplicationConfig) PropagationDelayOrZero() time.Duration {
	if r.PropagationDelay == nil {
		return 0
	}
	return *r.PropagationDelay
}

// InternalSubConfig configures the wildcard subscription the engine
// installs on every adapter at bootstrap so it observes its own
// published events.
type InternalSubConfig struct {
	EventTypes []string `yaml:"eventTypes"`
	Metadata   []string `yaml:"metadata"`
}
