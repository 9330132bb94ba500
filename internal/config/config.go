// Package config provides Viper-based configuration loading for the relay server.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultPort is the relay listen port used when neither the config file nor
// the environment provides one.
const DefaultPort = 3000

// ServerConfig holds top-level server settings.
type ServerConfig struct {
	// Name identifies this relay instance in logs.
	Name string `mapstructure:"name"`
	// ShutdownTimeout bounds how long in-flight connections may take to drain.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// RelayConfig holds WebSocket acceptor and room registry settings.
type RelayConfig struct {
	// Host is the bind address for the WebSocket listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the WebSocket listener.
	Port int `mapstructure:"port"`
	// Path is the HTTP path that upgrades to a WebSocket connection.
	Path string `mapstructure:"path"`
	// ReadTimeout is the maximum silence tolerated from a client, pongs included.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the per-frame write deadline.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// PingInterval is how often keepalive pings are sent. Must be below ReadTimeout.
	PingInterval time.Duration `mapstructure:"ping_interval"`
	// MaxMessageBytes caps the size of a single inbound frame.
	MaxMessageBytes int64 `mapstructure:"max_message_bytes"`
	// SendBuffer is the per-connection outbound queue depth.
	SendBuffer int `mapstructure:"send_buffer"`
	// WaitingRoomTTL evicts rooms still waiting for a second player after this
	// long. Zero disables eviction.
	WaitingRoomTTL time.Duration `mapstructure:"waiting_room_ttl"`
	// SweepInterval is how often idle rooms are checked for eviction.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (r RelayConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// HealthConfig holds the gRPC health endpoint settings.
type HealthConfig struct {
	// Enabled turns the health endpoint on.
	Enabled bool `mapstructure:"enabled"`
	// GRPCHost is the bind address for the health service.
	GRPCHost string `mapstructure:"grpc_host"`
	// GRPCPort is the TCP port for the health service.
	GRPCPort int `mapstructure:"grpc_port"`
}

// Addr returns the "host:port" gRPC address.
func (h HealthConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.GRPCHost, h.GRPCPort)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
	// Output is a zap sink: "stderr", "stdout" or a file path. Empty means stderr.
	Output string `mapstructure:"output"`
}

// Config is the top-level application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Relay   RelayConfig   `mapstructure:"relay"`
	Health  HealthConfig  `mapstructure:"health"`
	Logging LoggingConfig `mapstructure:"logging"`

	// Notices records adjustments made while loading, for logging once a
	// logger exists.
	Notices []string `mapstructure:"-"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateServer(c.Server); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateRelay(c.Relay); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateHealth(c.Health); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateServer(s ServerConfig) error {
	if s.Name == "" {
		return errors.New("server.name must not be empty")
	}
	if s.ShutdownTimeout < 0 {
		return errors.New("server.shutdown_timeout must not be negative")
	}
	return nil
}

func validateRelay(r RelayConfig) error {
	var errs []string
	// Port 0 asks the kernel for an ephemeral port and is only useful in tests.
	if r.Port < 0 || r.Port > 65535 {
		errs = append(errs, fmt.Sprintf("relay.port must be 0-65535, got %d", r.Port))
	}
	if !strings.HasPrefix(r.Path, "/") {
		errs = append(errs, fmt.Sprintf("relay.path must start with \"/\", got %q", r.Path))
	}
	if r.ReadTimeout <= 0 {
		errs = append(errs, "relay.read_timeout must be positive")
	}
	if r.WriteTimeout <= 0 {
		errs = append(errs, "relay.write_timeout must be positive")
	}
	if r.PingInterval <= 0 || r.PingInterval >= r.ReadTimeout {
		errs = append(errs, fmt.Sprintf("relay.ping_interval must be in (0, read_timeout), got %s", r.PingInterval))
	}
	if r.MaxMessageBytes < 64 {
		errs = append(errs, fmt.Sprintf("relay.max_message_bytes must be >= 64, got %d", r.MaxMessageBytes))
	}
	if r.SendBuffer < 1 {
		errs = append(errs, fmt.Sprintf("relay.send_buffer must be >= 1, got %d", r.SendBuffer))
	}
	if r.WaitingRoomTTL < 0 {
		errs = append(errs, "relay.waiting_room_ttl must not be negative")
	}
	if r.WaitingRoomTTL > 0 && r.SweepInterval <= 0 {
		errs = append(errs, "relay.sweep_interval must be positive when waiting_room_ttl is set")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateHealth(h HealthConfig) error {
	if !h.Enabled {
		return nil
	}
	var errs []string
	if h.GRPCHost == "" {
		errs = append(errs, "health.grpc_host must not be empty")
	}
	if h.GRPCPort < 0 || h.GRPCPort > 65535 {
		errs = append(errs, fmt.Sprintf("health.grpc_port must be 0-65535, got %d", h.GRPCPort))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// ResolvePortConflicts moves the health endpoint to an ephemeral port when it
// would share the relay port. The relay port is never changed.
//
// Postcondition: Health.GRPCPort != Relay.Port unless both are 0; each move is recorded in Notices.
func (c *Config) ResolvePortConflicts() {
	if !c.Health.Enabled || c.Health.GRPCPort == 0 || c.Health.GRPCPort != c.Relay.Port {
		return
	}
	c.Notices = append(c.Notices, fmt.Sprintf(
		"health.grpc_port %d equals relay.port; health endpoint moved to an ephemeral port",
		c.Health.GRPCPort,
	))
	c.Health.GRPCPort = 0
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result. An empty path skips the file and uses
// defaults plus the environment only.
//
// Precondition: path is empty or names a readable YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	return LoadFromViper(v)
}

// New returns a Viper instance with defaults and environment bindings applied.
//
// Postcondition: GOMOKU_<SECTION>_<KEY> overrides any key; PORT overrides relay.port.
func New() *viper.Viper {
	v := viper.New()

	// Environment variable overrides with GOMOKU_ prefix
	v.SetEnvPrefix("GOMOKU")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Hosting platforms hand out the listen port through a bare PORT variable.
	_ = v.BindEnv("relay.port", "GOMOKU_RELAY_PORT", "PORT")

	setDefaults(v)
	return v
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	cfg.ResolvePortConflicts()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.name", "gomoku-relay")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("relay.host", "0.0.0.0")
	v.SetDefault("relay.port", DefaultPort)
	v.SetDefault("relay.path", "/ws")
	v.SetDefault("relay.read_timeout", "60s")
	v.SetDefault("relay.write_timeout", "10s")
	v.SetDefault("relay.ping_interval", "25s")
	v.SetDefault("relay.max_message_bytes", 4096)
	v.SetDefault("relay.send_buffer", 32)
	v.SetDefault("relay.waiting_room_ttl", "30m")
	v.SetDefault("relay.sweep_interval", "1m")

	v.SetDefault("health.enabled", true)
	v.SetDefault("health.grpc_host", "0.0.0.0")
	v.SetDefault("health.grpc_port", 3001)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stderr")
}
