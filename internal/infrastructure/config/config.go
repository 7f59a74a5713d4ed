package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Gray Logic Climate.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site       SiteConfig       `yaml:"site"`
	Upstream   UpstreamConfig   `yaml:"upstream"`
	Credential CredentialConfig `yaml:"credential"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Devices    DevicesConfig    `yaml:"devices"`
	Database   DatabaseConfig   `yaml:"database"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	API        APIConfig        `yaml:"api"`
	WebSocket  WebSocketConfig  `yaml:"websocket"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID       string         `yaml:"id"`
	Name     string         `yaml:"name"`
	Timezone string         `yaml:"timezone"`
	Location LocationConfig `yaml:"location"`
}

// LocationConfig contains the coordinates used by the outdoor weather source.
type LocationConfig struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

// UpstreamConfig contains the climate service and weather endpoints.
type UpstreamConfig struct {
	BaseURL         string        `yaml:"base_url"`
	WeatherURL      string        `yaml:"weather_url"`
	WeatherAPIKey   string        `yaml:"weather_api_key"`
	WeatherUnits    string        `yaml:"weather_units"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	CommandTimeout  time.Duration `yaml:"command_timeout"`
	AnalysisTimeout time.Duration `yaml:"analysis_timeout"`
	RetryBackoff    time.Duration `yaml:"retry_backoff"`
}

// Credential modes.
const (
	CredentialStatic = "static"
	CredentialOAuth2 = "oauth2"
)

// CredentialConfig selects how bearer tokens are obtained.
type CredentialConfig struct {
	// Mode is "static" (a session token, optionally persisted) or "oauth2".
	Mode           string       `yaml:"mode"`
	Token          string       `yaml:"token"`
	PersistSession bool         `yaml:"persist_session"`
	OAuth2         OAuth2Config `yaml:"oauth2"`
}

// OAuth2Config contains refresh-token grant settings.
type OAuth2Config struct {
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	TokenURL     string   `yaml:"token_url"`
	RefreshToken string   `yaml:"refresh_token"`
	Scopes       []string `yaml:"scopes"`
}

// TelemetryConfig contains polling settings.
type TelemetryConfig struct {
	PollInterval    time.Duration `yaml:"poll_interval"`
	OutdoorInterval time.Duration `yaml:"outdoor_interval"`
	StaleMultiplier int           `yaml:"stale_multiplier"`
	FetchTimeout    time.Duration `yaml:"fetch_timeout"`
	// AutoStart starts polling every device at boot.
	AutoStart bool `yaml:"auto_start"`
	// SystemMetrics adds the status metrics source to each subscription.
	SystemMetrics bool `yaml:"system_metrics"`
}

// DevicesConfig contains the static unit list and command limits.
type DevicesConfig struct {
	MinTemperature int          `yaml:"min_temperature"`
	MaxTemperature int          `yaml:"max_temperature"`
	Units          []UnitConfig `yaml:"units"`
}

// UnitConfig describes one climate unit.
type UnitConfig struct {
	ID                string `yaml:"id"`
	Name              string `yaml:"name"`
	SystemID          string `yaml:"system_id"`
	ZoneID            string `yaml:"zone_id"`
	TargetTemperature int    `yaml:"target_temperature"`
	Mode              string `yaml:"mode"`
	PowerOn           bool   `yaml:"power_on"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
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
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig contains file-based logging settings.
type FileLoggingConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
// For example: GRAYLOGIC_UPSTREAM_BASE_URL, GRAYLOGIC_API_PORT
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

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "site-001",
			Name:     "Gray Logic Climate",
			Timezone: "UTC",
		},
		Upstream: UpstreamConfig{
			WeatherURL:      "https://api.openweathermap.org/data/2.5/weather",
			WeatherUnits:    "metric",
			RequestTimeout:  30 * time.Second,
			CommandTimeout:  10 * time.Second,
			AnalysisTimeout: 15 * time.Second,
			RetryBackoff:    500 * time.Millisecond,
		},
		Credential: CredentialConfig{
			Mode: CredentialStatic,
		},
		Telemetry: TelemetryConfig{
			PollInterval:    60 * time.Second,
			OutdoorInterval: 30 * time.Minute,
			StaleMultiplier: 2,
			FetchTimeout:    15 * time.Second,
		},
		Devices: DevicesConfig{
			MinTemperature: 16,
			MaxTemperature: 30,
		},
		Database: DatabaseConfig{
			Path:        "./data/graylogic-climate.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-climate",
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
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
			File: FileLoggingConfig{
				Path:       "./logs/graylogic-climate.log",
				MaxSize:    50,
				MaxBackups: 5,
				MaxAge:     28,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Upstream
	if v := os.Getenv("GRAYLOGIC_UPSTREAM_BASE_URL"); v != "" {
		cfg.Upstream.BaseURL = v
	}
	if v := os.Getenv("GRAYLOGIC_UPSTREAM_TOKEN"); v != "" {
		cfg.Credential.Token = v
	}
	if v := os.Getenv("GRAYLOGIC_WEATHER_API_KEY"); v != "" {
		cfg.Upstream.WeatherAPIKey = v
	}

	// Credential
	if v := os.Getenv("GRAYLOGIC_OAUTH2_CLIENT_SECRET"); v != "" {
		cfg.Credential.OAuth2.ClientSecret = v
	}
	if v := os.Getenv("GRAYLOGIC_OAUTH2_REFRESH_TOKEN"); v != "" {
		cfg.Credential.OAuth2.RefreshToken = v
	}

	// Database
	if v := os.Getenv("GRAYLOGIC_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("GRAYLOGIC_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("GRAYLOGIC_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("GRAYLOGIC_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("GRAYLOGIC_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	// Upstream
	if c.Upstream.BaseURL == "" {
		errs = append(errs, "upstream.base_url is required (set GRAYLOGIC_UPSTREAM_BASE_URL)")
	}
	if c.Upstream.CommandTimeout <= 0 {
		errs = append(errs, "upstream.command_timeout must be positive")
	}
	if c.Upstream.AnalysisTimeout <= 0 {
		errs = append(errs, "upstream.analysis_timeout must be positive")
	}

	// Credential
	switch c.Credential.Mode {
	case CredentialStatic:
	case CredentialOAuth2:
		o := c.Credential.OAuth2
		if o.ClientID == "" || o.TokenURL == "" || o.RefreshToken == "" {
			errs = append(errs, "credential.oauth2 requires client_id, token_url and refresh_token")
		}
	default:
		errs = append(errs, fmt.Sprintf("credential.mode must be %q or %q", CredentialStatic, CredentialOAuth2))
	}

	// Telemetry
	if c.Telemetry.PollInterval <= 0 {
		errs = append(errs, "telemetry.poll_interval must be positive")
	}
	if c.Telemetry.StaleMultiplier < 1 {
		errs = append(errs, "telemetry.stale_multiplier must be at least 1")
	}

	// Devices
	if c.Devices.MinTemperature >= c.Devices.MaxTemperature {
		errs = append(errs, "devices.min_temperature must be below devices.max_temperature")
	}
	seen := make(map[string]bool, len(c.Devices.Units))
	for i, u := range c.Devices.Units {
		switch {
		case u.ID == "":
			errs = append(errs, fmt.Sprintf("devices.units[%d].id is required", i))
		case seen[u.ID]:
			errs = append(errs, fmt.Sprintf("devices.units[%d].id %q is duplicated", i, u.ID))
		}
		seen[u.ID] = true
	}

	if c.Credential.PersistSession && c.Database.Path == "" {
		errs = append(errs, "database.path is required when credential.persist_session is set")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
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

// DefaultPath is used when GRAYLOGIC_CONFIG is not set.
const DefaultPath = "configs/config.yaml"

// Path returns the config file path from GRAYLOGIC_CONFIG, or DefaultPath.
func Path() string {
	if v := os.Getenv("GRAYLOGIC_CONFIG"); v != "" {
		return v
	}
	return DefaultPath
}
