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

// Config is the root configuration structure for vhtoggle.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device      DeviceConfig      `yaml:"device"`
	VirtualHere VirtualHereConfig `yaml:"virtualhere"`
	Polling     PollingConfig     `yaml:"polling"`
	Watch       WatchConfig       `yaml:"watch"`
	Database    DatabaseConfig    `yaml:"database"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	InfluxDB    InfluxDBConfig    `yaml:"influxdb"`
	Notify      NotifyConfig      `yaml:"notify"`
	API         APIConfig         `yaml:"api"`
	WebSocket   WebSocketConfig   `yaml:"websocket"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// DeviceConfig identifies the single peripheral this instance toggles.
type DeviceConfig struct {
	// ID is a short slug used in MQTT topics and history rows.
	ID string `yaml:"id"`

	// DisplayName is the human-readable name shown in notifications.
	DisplayName string `yaml:"display_name"`

	// Match is the substring searched for in each listing line.
	// Defaults to DisplayName when empty.
	Match string `yaml:"match"`

	// InUseMarker marks a listing line whose device is claimed by this host.
	InUseMarker string `yaml:"in_use_marker"`
}

// VirtualHereConfig describes the VirtualHere client binary and its IPC output.
type VirtualHereConfig struct {
	// Binary is the path to the VirtualHere client executable.
	Binary string `yaml:"binary"`

	// Banner is the literal prefix of a complete LIST response.
	Banner string `yaml:"banner"`

	// Trailer is the literal suffix of a complete LIST response.
	Trailer string `yaml:"trailer"`

	// Managed starts and supervises the client daemon in watch mode.
	Managed bool `yaml:"managed"`

	// DaemonArgs are the arguments used to launch the managed daemon.
	DaemonArgs []string `yaml:"daemon_args"`

	// RestartDelaySeconds is the wait before restarting a crashed daemon.
	RestartDelaySeconds int `yaml:"restart_delay_seconds"`

	// MaxRestartAttempts limits daemon restarts. 0 means unlimited.
	MaxRestartAttempts int `yaml:"max_restart_attempts"`
}

// PollingConfig contains retry and settle timing (milliseconds).
type PollingConfig struct {
	MaxRetries int `yaml:"max_retries"`
	DelayMs    int `yaml:"delay_ms"`
	SettleMs   int `yaml:"settle_ms"`
}

// WatchConfig contains background observation settings.
type WatchConfig struct {
	// IntervalSeconds is the period between background cycles.
	IntervalSeconds int `yaml:"interval_seconds"`

	// TriggerBuffer is the number of pending toggle/refresh requests kept.
	TriggerBuffer int `yaml:"trigger_buffer"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// HistoryRetentionDays prunes state history older than this. 0 keeps everything.
	HistoryRetentionDays int `yaml:"history_retention_days"`
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

// NotifyConfig selects the user-facing notification sinks.
type NotifyConfig struct {
	// Desktop sends freedesktop notifications over the D-Bus session bus.
	Desktop bool `yaml:"desktop"`

	// AppName is the application name shown by the notification daemon.
	AppName string `yaml:"app_name"`

	// ExpireMs is the notification timeout. -1 lets the server decide.
	ExpireMs int `yaml:"expire_ms"`
}

// APIConfig contains the local control API settings.
type APIConfig struct {
	Enabled   bool             `yaml:"enabled"`
	Host      string           `yaml:"host"`
	Port      int              `yaml:"port"`
	JWTSecret string           `yaml:"jwt_secret"`
	Timeouts  APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
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
// Environment variables follow the pattern: VHTOGGLE_SECTION_KEY
// For example: VHTOGGLE_DATABASE_PATH, VHTOGGLE_VIRTUALHERE_BINARY
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

	return finish(cfg)
}

// LoadDefaults returns the built-in configuration with environment overrides applied.
// Used when no config file exists at the default location.
func LoadDefaults() (*Config, error) {
	return finish(Default())
}

func finish(cfg *Config) (*Config, error) {
	applyEnvOverrides(cfg)

	if cfg.Device.Match == "" {
		cfg.Device.Match = cfg.Device.DisplayName
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			ID:          "wooting-60he",
			DisplayName: "Wooting 60HE+",
			InUseMarker: "In-use by you",
		},
		VirtualHere: VirtualHereConfig{
			Binary:              "/usr/local/bin/vhclientx86_64",
			Banner:              "VirtualHere Client IPC",
			Trailer:             "VirtualHere Client is running as a service",
			DaemonArgs:          []string{"-n"},
			RestartDelaySeconds: 5,
			MaxRestartAttempts:  10,
		},
		Polling: PollingConfig{
			MaxRetries: 5,
			DelayMs:    1000,
			SettleMs:   1000,
		},
		Watch: WatchConfig{
			IntervalSeconds: 60,
			TriggerBuffer:   4,
		},
		Database: DatabaseConfig{
			Path:                 defaultDatabasePath(),
			WALMode:              true,
			BusyTimeout:          5,
			HistoryRetentionDays: 90,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "vhtoggle",
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
		Notify: NotifyConfig{
			AppName:  "vhtoggle",
			ExpireMs: -1,
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8787,
			Timeouts: APITimeoutConfig{
				Read:  10,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 4096,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// defaultDatabasePath places the state database under the user's state directory.
func defaultDatabasePath() string {
	dir := os.Getenv("XDG_STATE_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join("data", "vhtoggle.db")
		}
		dir = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(dir, "vhtoggle", "vhtoggle.db")
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: VHTOGGLE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// VirtualHere
	if v := os.Getenv("VHTOGGLE_VIRTUALHERE_BINARY"); v != "" {
		cfg.VirtualHere.Binary = v
	}

	// Device
	if v := os.Getenv("VHTOGGLE_DEVICE_NAME"); v != "" {
		cfg.Device.DisplayName = v
	}
	if v := os.Getenv("VHTOGGLE_DEVICE_MATCH"); v != "" {
		cfg.Device.Match = v
	}

	// Database
	if v := os.Getenv("VHTOGGLE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("VHTOGGLE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("VHTOGGLE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("VHTOGGLE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("VHTOGGLE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// API
	if v := os.Getenv("VHTOGGLE_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}
	if v := os.Getenv("VHTOGGLE_API_JWT_SECRET"); v != "" {
		cfg.API.JWTSecret = v
	}

	// Logging
	if v := os.Getenv("VHTOGGLE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Device validation
	if c.Device.ID == "" {
		errs = append(errs, "device.id is required")
	}
	if c.Device.DisplayName == "" && c.Device.Match == "" {
		errs = append(errs, "device.display_name or device.match is required")
	}
	if c.Device.InUseMarker == "" {
		errs = append(errs, "device.in_use_marker is required")
	}

	// VirtualHere validation
	if c.VirtualHere.Binary == "" {
		errs = append(errs, "virtualhere.binary is required")
	}
	if c.VirtualHere.Banner == "" || c.VirtualHere.Trailer == "" {
		errs = append(errs, "virtualhere.banner and virtualhere.trailer are required")
	}

	// Polling validation
	if c.Polling.MaxRetries < 0 {
		errs = append(errs, "polling.max_retries must not be negative")
	}
	if c.Polling.DelayMs < 0 || c.Polling.SettleMs < 0 {
		errs = append(errs, "polling.delay_ms and polling.settle_ms must not be negative")
	}

	// Watch validation
	if c.Watch.IntervalSeconds < 1 {
		errs = append(errs, "watch.interval_seconds must be at least 1")
	}
	if c.Watch.TriggerBuffer < 1 {
		errs = append(errs, "watch.trigger_buffer must be at least 1")
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
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.API.Enabled && (c.WebSocket.PingInterval <= 0 || c.WebSocket.PongTimeout <= 0 || c.WebSocket.MaxMessageSize <= 0) {
		errs = append(errs, "websocket settings must be positive")
	}
	const minJWTSecretLength = 32
	if c.API.JWTSecret != "" && len(c.API.JWTSecret) < minJWTSecretLength {
		errs = append(errs, "api.jwt_secret must be at least 32 characters")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// RetryDelay returns the delay between LIST attempts.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Polling.DelayMs) * time.Millisecond
}

// SettleDelay returns the wait after a toggle before re-checking.
func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.Polling.SettleMs) * time.Millisecond
}

// WatchInterval returns the period between background cycles.
func (c *Config) WatchInterval() time.Duration {
	return time.Duration(c.Watch.IntervalSeconds) * time.Second
}

// HistoryRetention returns how long state history is kept. Zero disables pruning.
func (c *Config) HistoryRetention() time.Duration {
	return time.Duration(c.Database.HistoryRetentionDays) * 24 * time.Hour
}
