package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Rachio Bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Rachio     RachioConfig     `yaml:"rachio"`
	Webhook    WebhookConfig    `yaml:"webhook"`
	ImageProxy ImageProxyConfig `yaml:"image_proxy"`
	Database   DatabaseConfig   `yaml:"database"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	API        APIConfig        `yaml:"api"`
	WebSocket  WebSocketConfig  `yaml:"websocket"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// RachioConfig contains cloud account settings.
type RachioConfig struct {
	// APIKey is the bearer token for the cloud REST API.
	// Set via RACHIO_API_KEY rather than the config file where possible.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the cloud endpoint. Empty means the production API.
	BaseURL string `yaml:"base_url"`

	// PollingInterval is the reconciliation period in seconds.
	PollingInterval int `yaml:"polling_interval"`

	// DefaultRuntime is the zone run duration in seconds when a start
	// request does not carry one.
	DefaultRuntime int `yaml:"default_runtime"`
}

// WebhookConfig contains cloud event callback settings.
type WebhookConfig struct {
	Enabled bool `yaml:"enabled"`

	// CallbackURL is the externally reachable URL the cloud POSTs events to.
	// It must route to this process's /webhook/rachio endpoint.
	CallbackURL string `yaml:"callback_url"`

	// ClearAllCallbacks removes every registration on the account during
	// startup instead of only those matching CallbackURL. Useful when a
	// previous deployment leaked registrations under a stale URL.
	ClearAllCallbacks bool `yaml:"clear_all_callbacks"`
}

// ImageProxyConfig contains settings for relaying zone imagery.
type ImageProxyConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
}

// DatabaseConfig holds SQLite settings for event history.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig holds broker settings for state publishing.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig identifies the broker endpoint.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig carries optional broker credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig tunes the reconnect backoff, in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig holds HTTP listener settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig points at the certificate pair when TLS is enabled.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig holds HTTP server timeouts, in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig controls cross-origin access for browser dashboards.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig tunes the event stream endpoint.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig holds telemetry storage settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads the YAML file at path over built-in defaults, then applies
// environment overrides, then validates. A value the file omits can
// therefore still arrive from the environment.
//
// Environment variables follow the pattern: RACHIOBRIDGE_SECTION_KEY,
// with RACHIO_API_KEY accepted as the conventional name for the token.
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// defaultConfig is the baseline every load starts from.
func defaultConfig() *Config {
	return &Config{
		Rachio: RachioConfig{
			BaseURL:         "https://api.rach.io/1/public",
			PollingInterval: 900,
			DefaultRuntime:  120,
		},
		Webhook: WebhookConfig{
			Enabled: true,
		},
		ImageProxy: ImageProxyConfig{
			BaseURL: "https://media.rach.io",
		},
		Database: DatabaseConfig{
			Path:        "./data/rachiobridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "rachio-bridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides layers RACHIOBRIDGE_* (and RACHIO_API_KEY) values
// over whatever the file provided.
// Environment variables follow the pattern: RACHIOBRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Cloud account - the short name is what the vendor documents
	if v := os.Getenv("RACHIO_API_KEY"); v != "" {
		cfg.Rachio.APIKey = v
	}
	if v := os.Getenv("RACHIOBRIDGE_RACHIO_BASE_URL"); v != "" {
		cfg.Rachio.BaseURL = v
	}

	// Webhook
	if v := os.Getenv("RACHIOBRIDGE_WEBHOOK_CALLBACK_URL"); v != "" {
		cfg.Webhook.CallbackURL = v
	}

	// Database
	if v := os.Getenv("RACHIOBRIDGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("RACHIOBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("RACHIOBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("RACHIOBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("RACHIOBRIDGE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("RACHIOBRIDGE_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("RACHIOBRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("RACHIOBRIDGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Cloud account validation - without a key every upstream call fails
	// with an authorization error, so refuse to start at all.
	if c.Rachio.APIKey == "" {
		errs = append(errs, "rachio.api_key is required (set RACHIO_API_KEY environment variable)")
	}
	if c.Rachio.PollingInterval < 60 {
		errs = append(errs, "rachio.polling_interval must be at least 60 seconds")
	}
	if c.Rachio.DefaultRuntime < 1 {
		errs = append(errs, "rachio.default_runtime must be positive")
	}

	// Webhook validation
	if c.Webhook.Enabled && c.Webhook.CallbackURL == "" {
		errs = append(errs, "webhook.callback_url is required when webhook.enabled is true")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetPollingInterval returns the reconciliation period as a Duration.
func (c *Config) GetPollingInterval() time.Duration {
	return time.Duration(c.Rachio.PollingInterval) * time.Second
}

// GetDefaultRuntime returns the default zone runtime as a Duration.
func (c *Config) GetDefaultRuntime() time.Duration {
	return time.Duration(c.Rachio.DefaultRuntime) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
