package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Hub Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Hub          HubConfig          `yaml:"hub"`
	Database     DatabaseConfig     `yaml:"database"`
	MQTT         MQTTConfig         `yaml:"mqtt"`
	API          APIConfig          `yaml:"api"`
	WebSocket    WebSocketConfig    `yaml:"websocket"`
	InfluxDB     InfluxDBConfig     `yaml:"influxdb"`
	Logging      LoggingConfig      `yaml:"logging"`
	Security     SecurityConfig     `yaml:"security"`
	Entries      EntriesConfig      `yaml:"entries"`
	Integrations IntegrationsConfig `yaml:"integrations"`
}

// HubConfig contains instance-level information.
type HubConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
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

// APITimeoutConfig contains HTTP timeout settings (seconds).
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

// InfluxDBConfig contains InfluxDB connection settings for usage history.
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

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT      JWTConfig      `yaml:"jwt"`
	Operator OperatorConfig `yaml:"operator"`
}

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"` // minutes
}

// OperatorConfig contains the single operator login for the API.
type OperatorConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// EntriesConfig contains config-entry lifecycle settings.
type EntriesConfig struct {
	// SetupRetry is the delay between setup retry attempts (seconds)
	// for entries whose integration reported a transient failure.
	SetupRetry int `yaml:"setup_retry"`
}

// IntegrationsConfig contains per-integration defaults.
type IntegrationsConfig struct {
	Roborock        RoborockConfig        `yaml:"roborock"`
	SouthernCompany SouthernCompanyConfig `yaml:"southern_company"`
	OralB           OralBConfig           `yaml:"oralb"`
}

// RoborockConfig contains Roborock integration settings.
type RoborockConfig struct {
	// BaseURL overrides the account API endpoint. Empty uses the URL
	// stored in the config entry at pairing time.
	BaseURL string `yaml:"base_url"`

	// LocalPort is the TCP port vacuums listen on for local control.
	LocalPort int `yaml:"local_port"`

	// ScanInterval is the polling interval in seconds.
	ScanInterval int `yaml:"scan_interval"`
}

// SouthernCompanyConfig contains Southern Company integration settings.
type SouthernCompanyConfig struct {
	BaseURL string `yaml:"base_url"`

	// ScanInterval is the polling interval in minutes.
	ScanInterval int `yaml:"scan_interval"`
}

// OralBConfig contains Oral-B BLE integration settings.
type OralBConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: HUBCORE_SECTION_KEY
// For example: HUBCORE_DATABASE_PATH, HUBCORE_JWT_SECRET
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

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Hub: HubConfig{
			ID:       "hub-001",
			Name:     "Hub Core",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        "./data/hubcore.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "hubcore",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
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
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 15,
			},
			Operator: OperatorConfig{
				Username: "admin",
			},
		},
		Entries: EntriesConfig{
			SetupRetry: 30,
		},
		Integrations: IntegrationsConfig{
			Roborock: RoborockConfig{
				LocalPort:    58867,
				ScanInterval: 30,
			},
			SouthernCompany: SouthernCompanyConfig{
				ScanInterval: 60,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: HUBCORE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HUBCORE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("HUBCORE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("HUBCORE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("HUBCORE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("HUBCORE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("HUBCORE_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	if v := os.Getenv("HUBCORE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// JWT secret must always be overridden in production.
	if v := os.Getenv("HUBCORE_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
	if v := os.Getenv("HUBCORE_OPERATOR_PASSWORD"); v != "" {
		cfg.Security.Operator.Password = v
	}
}

// minJWTSecretLength is the minimum acceptable JWT secret length.
// Shorter secrets make token forgery practical.
const minJWTSecretLength = 32

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Hub.ID == "" {
		errs = append(errs, "hub.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set HUBCORE_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	if c.Entries.SetupRetry < 1 {
		errs = append(errs, "entries.setup_retry must be at least 1 second")
	}

	if c.Integrations.Roborock.ScanInterval < 1 {
		errs = append(errs, "integrations.roborock.scan_interval must be at least 1 second")
	}
	if c.Integrations.SouthernCompany.ScanInterval < 1 {
		errs = append(errs, "integrations.southern_company.scan_interval must be at least 1 minute")
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

// SetupRetryInterval returns the entry setup retry delay as a Duration.
func (c *EntriesConfig) SetupRetryInterval() time.Duration {
	return time.Duration(c.SetupRetry) * time.Second
}
