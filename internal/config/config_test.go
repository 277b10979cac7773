package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func validConfig() Config {
	return Config{
		Server: ServerConfig{
			Mode:      "relay",
			Name:      "fpsnet",
			StaticDir: "public",
		},
		WebSocket: WebSocketConfig{
			Host:            "0.0.0.0",
			Port:            3000,
			Path:            "/ws",
			ReadTimeout:     60 * time.Second,
			WriteTimeout:    10 * time.Second,
			PingInterval:    25 * time.Second,
			MaxMessageBytes: 1 << 20,
			SendBuffer:      64,
		},
		Admin: AdminConfig{
			GRPCHost:    "127.0.0.1",
			GRPCPort:    50051,
			MetricsPath: "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Exporter:    "none",
			SampleRatio: 1,
		},
		Game: GameConfig{
			DefaultWeapon:  "pistol",
			SpawnHeight:    1.6,
			HostReelection: true,
		},
		Proxy: ProxyConfig{
			UpdateInterval: 50 * time.Millisecond,
			DialTimeout:    5 * time.Second,
		},
	}
}

func TestValidConfig(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestWebSocketAddr(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "0.0.0.0:3000", cfg.WebSocket.Addr())
}

func TestAdminAddr(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "127.0.0.1:50051", cfg.Admin.Addr())
}

func TestDefaults(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)

	assert.Equal(t, "relay", cfg.Server.Mode)
	assert.Equal(t, 3000, cfg.WebSocket.Port)
	assert.Equal(t, "/ws", cfg.WebSocket.Path)
	assert.Equal(t, 25*time.Second, cfg.WebSocket.PingInterval)
	assert.Equal(t, "pistol", cfg.Game.DefaultWeapon)
	assert.Equal(t, 1.6, cfg.Game.SpawnHeight)
	assert.True(t, cfg.Game.HostReelection)
	assert.Equal(t, 50*time.Millisecond, cfg.Proxy.UpdateInterval)
	assert.Equal(t, "none", cfg.Tracing.Exporter)
	assert.Equal(t, 1.0, cfg.Tracing.SampleRatio)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	err := os.WriteFile(path, []byte(`
server:
  mode: standalone
  static_dir: ./www
websocket:
  host: 127.0.0.1
  port: 3001
  read_timeout: 30s
  ping_interval: 10s
logging:
  level: debug
  format: console
game:
  default_weapon: shotgun
  max_players_per_room: 8
  host_reelection: false
`), 0644)
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "standalone", cfg.Server.Mode)
	assert.Equal(t, "./www", cfg.Server.StaticDir)
	assert.Equal(t, 3001, cfg.WebSocket.Port)
	assert.Equal(t, 30*time.Second, cfg.WebSocket.ReadTimeout)
	assert.Equal(t, 10*time.Second, cfg.WebSocket.WriteTimeout, "unset keys keep defaults")
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "shotgun", cfg.Game.DefaultWeapon)
	assert.Equal(t, 8, cfg.Game.MaxPlayersPerRoom)
	assert.False(t, cfg.Game.HostReelection)
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte("websocket:\n  port: 3001\n"), 0644))

	t.Setenv("FPS_WEBSOCKET_PORT", "4100")
	t.Setenv("FPS_LOGGING_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4100, cfg.WebSocket.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadInvalidPath(t *testing.T) {
	_, err := Load("/nonexistent/path.yaml")
	assert.Error(t, err)
}

func TestLoadInvalidValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: loud\n"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.level")
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("FPS_TEST_DOTENV=loaded\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("FPS_TEST_DOTENV") })

	require.NoError(t, loadDotEnv(envPath))
	assert.Equal(t, "loaded", os.Getenv("FPS_TEST_DOTENV"))
}

func TestLoadDotEnvMissingIsNotAnError(t *testing.T) {
	assert.NoError(t, loadDotEnv(filepath.Join(t.TempDir(), ".env")))
}

func TestValidateServerMode(t *testing.T) {
	for _, mode := range []string{"standalone", "relay"} {
		cfg := validConfig()
		cfg.Server.Mode = mode
		assert.NoError(t, cfg.Validate(), "mode %q should be valid", mode)
	}
	cfg := validConfig()
	cfg.Server.Mode = "backend"
	assert.Error(t, cfg.Validate())
}

func TestValidateStandaloneNeedsStaticDir(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Mode = "standalone"
	cfg.Server.StaticDir = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateLoggingLevel(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		cfg := validConfig()
		cfg.Logging.Level = level
		assert.NoError(t, cfg.Validate(), "level %q should be valid", level)
	}
	cfg := validConfig()
	cfg.Logging.Level = "trace"
	assert.Error(t, cfg.Validate())
}

func TestValidateLoggingFormat(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Format = "xml"
	assert.Error(t, cfg.Validate())
}

func TestValidateWebSocketPath(t *testing.T) {
	cfg := validConfig()
	cfg.WebSocket.Path = "ws"
	assert.Error(t, cfg.Validate())
}

func TestValidatePingMustBeShorterThanRead(t *testing.T) {
	cfg := validConfig()
	cfg.WebSocket.PingInterval = cfg.WebSocket.ReadTimeout
	assert.Error(t, cfg.Validate())
}

func TestValidateSendBuffer(t *testing.T) {
	cfg := validConfig()
	cfg.WebSocket.SendBuffer = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateAdminHostRequiredWithPort(t *testing.T) {
	cfg := validConfig()
	cfg.Admin.GRPCHost = ""
	assert.Error(t, cfg.Validate())

	cfg.Admin.GRPCPort = 0
	assert.NoError(t, cfg.Validate(), "disabled health service needs no host")
}

func TestValidateGame(t *testing.T) {
	cfg := validConfig()
	cfg.Game.DefaultWeapon = ""
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Game.MaxPlayersPerRoom = -1
	assert.Error(t, cfg.Validate())
}

func TestValidateTracing(t *testing.T) {
	cfg := validConfig()
	cfg.Tracing.Exporter = "stdout"
	assert.NoError(t, cfg.Validate())

	cfg.Tracing.Exporter = "jaeger"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tracing.exporter")

	cfg = validConfig()
	cfg.Tracing.SampleRatio = 1.5
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tracing.sample_ratio")
}

func TestValidateProxy(t *testing.T) {
	cfg := validConfig()
	cfg.Proxy.UpdateInterval = -time.Millisecond
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Proxy.DialTimeout = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateReportsAllViolations(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Level = "trace"
	cfg.WebSocket.SendBuffer = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.level")
	assert.Contains(t, err.Error(), "websocket.send_buffer")
}

// Property-based tests

func TestPropertyValidPortRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		port := rapid.IntRange(0, 65535).Draw(t, "port")
		cfg := validConfig()
		cfg.WebSocket.Port = port
		if err := cfg.Validate(); err != nil {
			t.Fatalf("valid port %d rejected: %v", port, err)
		}
	})
}

func TestPropertyInvalidPortRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		port := rapid.OneOf(
			rapid.IntRange(-1000, -1),
			rapid.IntRange(65536, 100000),
		).Draw(t, "port")
		cfg := validConfig()
		cfg.WebSocket.Port = port
		if err := cfg.Validate(); err == nil {
			t.Fatalf("invalid port %d accepted", port)
		}
	})
}

func TestPropertyPingIntervalBelowReadTimeout(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		read := time.Duration(rapid.IntRange(2, 600).Draw(t, "read_s")) * time.Second
		ping := time.Duration(rapid.IntRange(1, int(read/time.Second)-1).Draw(t, "ping_s")) * time.Second
		cfg := validConfig()
		cfg.WebSocket.ReadTimeout = read
		cfg.WebSocket.PingInterval = ping
		if err := cfg.Validate(); err != nil {
			t.Fatalf("ping=%s read=%s rejected: %v", ping, read, err)
		}
	})
}
