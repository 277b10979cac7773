// Package config provides Viper-based configuration loading for the relay server
// and its companion tools.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Server operation modes.
const (
	ModeStandalone = "standalone"
	ModeRelay      = "relay"
)

// ServerConfig holds top-level server settings.
type ServerConfig struct {
	// Mode is the server operation mode: "standalone" serves StaticDir next to
	// the websocket endpoint, "relay" serves only the websocket and admin endpoints.
	Mode string `mapstructure:"mode"`
	// Name identifies this instance in logs.
	Name string `mapstructure:"name"`
	// StaticDir is the directory of lobby/game assets served in standalone mode.
	StaticDir string `mapstructure:"static_dir"`
}

// WebSocketConfig holds the client-facing websocket listener settings.
type WebSocketConfig struct {
	// Host is the bind address for the HTTP listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the HTTP listener.
	Port int `mapstructure:"port"`
	// Path is the URL path clients upgrade on.
	Path string `mapstructure:"path"`
	// ReadTimeout is how long a connection may stay silent (no frames, no pongs)
	// before it is considered dead.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout bounds each frame write.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// PingInterval is the keepalive ping period. Must be shorter than ReadTimeout.
	PingInterval time.Duration `mapstructure:"ping_interval"`
	// MaxMessageBytes caps inbound frame size.
	MaxMessageBytes int64 `mapstructure:"max_message_bytes"`
	// SendBuffer is the per-connection outbound queue length.
	SendBuffer int `mapstructure:"send_buffer"`
	// AllowedOrigins restricts the Origin header on upgrade; empty allows all.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (w WebSocketConfig) Addr() string {
	return fmt.Sprintf("%s:%d", w.Host, w.Port)
}

// AdminConfig holds operational endpoint settings.
type AdminConfig struct {
	// GRPCHost is the bind address of the gRPC health service.
	GRPCHost string `mapstructure:"grpc_host"`
	// GRPCPort is the TCP port of the gRPC health service; zero disables it.
	GRPCPort int `mapstructure:"grpc_port"`
	// MetricsPath is the HTTP path Prometheus metrics are served on.
	MetricsPath string `mapstructure:"metrics_path"`
}

// Addr returns the "host:port" gRPC address.
func (a AdminConfig) Addr() string {
	return fmt.Sprintf("%s:%d", a.GRPCHost, a.GRPCPort)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// Tracing exporters.
const (
	TracingNone   = "none"
	TracingStdout = "stdout"
)

// TracingConfig holds OpenTelemetry span export settings.
type TracingConfig struct {
	// Exporter selects where finished spans go: "none" or "stdout".
	Exporter string `mapstructure:"exporter"`
	// SampleRatio is the fraction of root spans recorded, in [0, 1].
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// GameConfig holds room and player defaults.
type GameConfig struct {
	DefaultWeapon     string  `mapstructure:"default_weapon"`
	SpawnHeight       float64 `mapstructure:"spawn_height"`
	MaxPlayersPerRoom int     `mapstructure:"max_players_per_room"`
	HostReelection    bool    `mapstructure:"host_reelection"`
}

// ProxyConfig holds client-side Network Proxy settings.
type ProxyConfig struct {
	// UpdateInterval is the minimum spacing between accepted playerUpdate sends.
	UpdateInterval time.Duration `mapstructure:"update_interval"`
	// DialTimeout bounds the websocket handshake.
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Game      GameConfig      `mapstructure:"game"`
	Proxy     ProxyConfig     `mapstructure:"proxy"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	for _, err := range []error{
		validateServer(c.Server),
		validateWebSocket(c.WebSocket),
		validateAdmin(c.Admin),
		validateLogging(c.Logging),
		validateTracing(c.Tracing),
		validateGame(c.Game),
		validateProxy(c.Proxy),
	} {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateServer(s ServerConfig) error {
	validModes := map[string]bool{ModeStandalone: true, ModeRelay: true}
	if !validModes[s.Mode] {
		return fmt.Errorf("server.mode must be one of [standalone, relay], got %q", s.Mode)
	}
	if s.Mode == ModeStandalone && s.StaticDir == "" {
		return errors.New("server.static_dir must not be empty in standalone mode")
	}
	return nil
}

func validateWebSocket(w WebSocketConfig) error {
	var errs []string
	if w.Port < 0 || w.Port > 65535 {
		errs = append(errs, fmt.Sprintf("websocket.port must be 0-65535, got %d", w.Port))
	}
	if !strings.HasPrefix(w.Path, "/") {
		errs = append(errs, fmt.Sprintf("websocket.path must start with '/', got %q", w.Path))
	}
	if w.ReadTimeout <= 0 {
		errs = append(errs, "websocket.read_timeout must be positive")
	}
	if w.WriteTimeout <= 0 {
		errs = append(errs, "websocket.write_timeout must be positive")
	}
	if w.PingInterval <= 0 || w.PingInterval >= w.ReadTimeout {
		errs = append(errs, "websocket.ping_interval must be positive and shorter than websocket.read_timeout")
	}
	if w.MaxMessageBytes < 1 {
		errs = append(errs, fmt.Sprintf("websocket.max_message_bytes must be >= 1, got %d", w.MaxMessageBytes))
	}
	if w.SendBuffer < 1 {
		errs = append(errs, fmt.Sprintf("websocket.send_buffer must be >= 1, got %d", w.SendBuffer))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateAdmin(a AdminConfig) error {
	var errs []string
	if a.GRPCPort < 0 || a.GRPCPort > 65535 {
		errs = append(errs, fmt.Sprintf("admin.grpc_port must be 0-65535, got %d", a.GRPCPort))
	}
	if a.GRPCPort > 0 && a.GRPCHost == "" {
		errs = append(errs, "admin.grpc_host must not be empty when admin.grpc_port is set")
	}
	if !strings.HasPrefix(a.MetricsPath, "/") {
		errs = append(errs, fmt.Sprintf("admin.metrics_path must start with '/', got %q", a.MetricsPath))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
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

func validateTracing(t TracingConfig) error {
	var errs []string
	validExporters := map[string]bool{TracingNone: true, TracingStdout: true}
	if !validExporters[t.Exporter] {
		errs = append(errs, fmt.Sprintf("tracing.exporter must be one of [none, stdout], got %q", t.Exporter))
	}
	if t.SampleRatio < 0 || t.SampleRatio > 1 {
		errs = append(errs, fmt.Sprintf("tracing.sample_ratio must be within [0, 1], got %g", t.SampleRatio))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateGame(g GameConfig) error {
	var errs []string
	if g.DefaultWeapon == "" {
		errs = append(errs, "game.default_weapon must not be empty")
	}
	if g.MaxPlayersPerRoom < 0 {
		errs = append(errs, fmt.Sprintf("game.max_players_per_room must be >= 0, got %d", g.MaxPlayersPerRoom))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateProxy(p ProxyConfig) error {
	var errs []string
	if p.UpdateInterval < 0 {
		errs = append(errs, "proxy.update_interval must not be negative")
	}
	if p.DialTimeout <= 0 {
		errs = append(errs, "proxy.dial_timeout must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result. A .env file in the working directory is
// loaded into the environment first when present.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}

	v := NewViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return LoadFromViper(v)
}

// NewViper returns a Viper instance with defaults and FPS_ environment
// overrides applied, but no config file.
func NewViper() *viper.Viper {
	v := viper.New()

	// Environment variable overrides with FPS_ prefix
	v.SetEnvPrefix("FPS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

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
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the configuration produced by defaults and environment
// overrides alone.
func Default() (Config, error) {
	return LoadFromViper(NewViper())
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.mode", "relay")
	v.SetDefault("server.name", "fpsnet")
	v.SetDefault("server.static_dir", "public")

	v.SetDefault("websocket.host", "0.0.0.0")
	v.SetDefault("websocket.port", 3000)
	v.SetDefault("websocket.path", "/ws")
	v.SetDefault("websocket.read_timeout", "60s")
	v.SetDefault("websocket.write_timeout", "10s")
	v.SetDefault("websocket.ping_interval", "25s")
	v.SetDefault("websocket.max_message_bytes", 1<<20)
	v.SetDefault("websocket.send_buffer", 64)
	v.SetDefault("websocket.allowed_origins", []string{})

	v.SetDefault("admin.grpc_host", "127.0.0.1")
	v.SetDefault("admin.grpc_port", 50051)
	v.SetDefault("admin.metrics_path", "/metrics")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("tracing.exporter", TracingNone)
	v.SetDefault("tracing.sample_ratio", 1.0)

	v.SetDefault("game.default_weapon", "pistol")
	v.SetDefault("game.spawn_height", 1.6)
	v.SetDefault("game.max_players_per_room", 0)
	v.SetDefault("game.host_reelection", true)

	v.SetDefault("proxy.update_interval", "50ms")
	v.SetDefault("proxy.dial_timeout", "5s")
}
