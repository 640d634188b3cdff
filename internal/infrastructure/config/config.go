package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage backend names accepted by storage.backend.
const (
	StorageBackendJSON   = "json"
	StorageBackendSQLite = "sqlite"
)

// Config is the root configuration structure for SensorHub.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Serial    SerialConfig    `yaml:"serial"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Storage   StorageConfig   `yaml:"storage"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SiteConfig contains installation-specific information.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// SerialConfig contains serial line settings shared by the prober and the readers.
type SerialConfig struct {
	// BaudRate is the fixed line speed used for every device.
	BaudRate int `yaml:"baud_rate"`

	// ReadTimeout bounds a single line read inside a device reader.
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// ProbeReadTimeout bounds the single handshake line read.
	ProbeReadTimeout time.Duration `yaml:"probe_read_timeout"`

	// SettleDelay is the wait between opening a port and reading the handshake.
	// Opening the line resets most microcontrollers, so this covers their boot time.
	SettleDelay time.Duration `yaml:"settle_delay"`
}

// DiscoveryConfig contains port scanning settings.
type DiscoveryConfig struct {
	Interval            time.Duration `yaml:"interval"`
	MaxConcurrentProbes int           `yaml:"max_concurrent_probes"`

	// Hotplug enables an early scan whenever a tty node appears in HotplugDir.
	Hotplug    bool   `yaml:"hotplug"`
	HotplugDir string `yaml:"hotplug_dir"`

	// RearmOnReaderExit releases a port from the active set when its reader stops,
	// so the device can be rediscovered without a restart. Off by default.
	RearmOnReaderExit bool `yaml:"rearm_on_reader_exit"`
}

// StorageConfig selects where identities and reading histories are persisted.
type StorageConfig struct {
	// Backend is "json" (one file per device plus a registry file) or "sqlite".
	Backend      string `yaml:"backend"`
	DataDir      string `yaml:"data_dir"`
	RegistryFile string `yaml:"registry_file"`
}

// DatabaseConfig contains SQLite database settings (used by the sqlite backend).
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

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings.
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

// MetricsConfig contains Prometheus exposition settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SENSORHUB_SECTION_KEY
// For example: SENSORHUB_STORAGE_DATA_DIR, SENSORHUB_API_PORT
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

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

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "sensorhub-001",
			Name: "SensorHub",
		},
		Serial: SerialConfig{
			BaudRate:         115200,
			ReadTimeout:      1 * time.Second,
			ProbeReadTimeout: 2 * time.Second,
			SettleDelay:      5 * time.Second,
		},
		Discovery: DiscoveryConfig{
			Interval:            5 * time.Second,
			MaxConcurrentProbes: 4,
			Hotplug:             true,
			HotplugDir:          "/dev",
		},
		Storage: StorageConfig{
			Backend:      StorageBackendJSON,
			DataDir:      "./data",
			RegistryFile: "./device_map.json",
		},
		Database: DatabaseConfig{
			Path:        "./data/sensorhub.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "sensorhub",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
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
			Path:           "/api/v1/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: SENSORHUB_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Storage
	if v := os.Getenv("SENSORHUB_STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("SENSORHUB_STORAGE_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SENSORHUB_STORAGE_REGISTRY_FILE"); v != "" {
		cfg.Storage.RegistryFile = v
	}

	// Database
	if v := os.Getenv("SENSORHUB_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("SENSORHUB_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SENSORHUB_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SENSORHUB_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("SENSORHUB_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("SENSORHUB_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("SENSORHUB_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("SENSORHUB_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	// Serial validation
	if c.Serial.BaudRate <= 0 {
		errs = append(errs, "serial.baud_rate must be positive")
	}
	if c.Serial.ReadTimeout <= 0 {
		errs = append(errs, "serial.read_timeout must be positive")
	}
	if c.Serial.ProbeReadTimeout <= 0 {
		errs = append(errs, "serial.probe_read_timeout must be positive")
	}
	if c.Serial.SettleDelay < 0 {
		errs = append(errs, "serial.settle_delay cannot be negative")
	}

	// Discovery validation
	if c.Discovery.Interval <= 0 {
		errs = append(errs, "discovery.interval must be positive")
	}
	if c.Discovery.MaxConcurrentProbes < 1 {
		errs = append(errs, "discovery.max_concurrent_probes must be at least 1")
	}
	if c.Discovery.Hotplug && c.Discovery.HotplugDir == "" {
		errs = append(errs, "discovery.hotplug_dir is required when hotplug is enabled")
	}

	// Storage validation
	switch c.Storage.Backend {
	case StorageBackendJSON:
		if c.Storage.DataDir == "" {
			errs = append(errs, "storage.data_dir is required for the json backend")
		}
		if c.Storage.RegistryFile == "" {
			errs = append(errs, "storage.registry_file is required for the json backend")
		}
		if c.Storage.DataDir != "" && c.Storage.RegistryFile != "" &&
			sameDir(filepath.Dir(c.Storage.RegistryFile), c.Storage.DataDir) {
			errs = append(errs, "storage.registry_file must not be inside storage.data_dir")
		}
	case StorageBackendSQLite:
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required for the sqlite backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("storage.backend must be %q or %q", StorageBackendJSON, StorageBackendSQLite))
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if !strings.HasPrefix(c.WebSocket.Path, "/") || c.WebSocket.Path == "/" {
		errs = append(errs, "websocket.path must start with / and name a route")
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, "metrics.path must start with /")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// sameDir reports whether a and b name the same directory once made absolute.
func sameDir(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

// ProbeTimeout returns the upper bound for one complete handshake probe:
// the settle delay plus the handshake read, with a second of slack for open/close.
func (c *Config) ProbeTimeout() time.Duration {
	return c.Serial.SettleDelay + c.Serial.ProbeReadTimeout + time.Second
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
