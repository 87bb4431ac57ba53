package server

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:3000", cfg.Server.ListenAddr)
	assert.Equal(t, "/", cfg.Server.WebSocketPath)
	assert.Equal(t, "mqtt", cfg.MessageBroker.Type)
	assert.Equal(t, "0.0.0.0:1883", cfg.MessageBroker.MQTT.ListenAddr)
	assert.True(t, cfg.Retention.Data)
	assert.False(t, cfg.Retention.Log)
	assert.Equal(t, "none", cfg.ManagementAPI.Auth.Type)
}

func TestLoadConfig_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  listen_addr: "127.0.0.1:4000"
retention:
  log: true
signaling:
  default_room: lobby
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:4000", cfg.Server.ListenAddr)
	assert.Equal(t, "/", cfg.Server.WebSocketPath)
	assert.True(t, cfg.Retention.Data)
	assert.True(t, cfg.Retention.Log)
	assert.Equal(t, "lobby", cfg.Signaling.DefaultRoom)
	assert.Equal(t, "ALL", cfg.Signaling.BroadcastTarget)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unterminated"), 0o644))

	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_LISTEN_ADDR", "0.0.0.0:9000")
	t.Setenv("NODE_ID", "node-a")
	t.Setenv("MESSAGE_BROKER_NODE_ID", "node-b")
	t.Setenv("MESSAGE_BROKER_TYPE", "redis")
	t.Setenv("MESSAGE_BROKER_REDIS_ADDRS", "r1:6379, r2:6379,")
	t.Setenv("MESSAGE_BROKER_MQTT_LISTEN_ADDR", "")
	t.Setenv("RETENTION_DATA", "false")
	t.Setenv("RETENTION_LOG", "1")
	t.Setenv("MANAGEMENT_API_TOKEN", "s3cret")

	cfg := GetDefaultConfig()
	ApplyEnvOverrides(cfg)

	assert.Equal(t, "0.0.0.0:9000", cfg.Server.ListenAddr)
	assert.Equal(t, "node-b", cfg.MessageBroker.NodeID)
	assert.Equal(t, "redis", cfg.MessageBroker.Type)
	assert.Equal(t, []string{"r1:6379", "r2:6379"}, cfg.MessageBroker.Redis.Addrs)
	assert.Empty(t, cfg.MessageBroker.MQTT.ListenAddr)
	assert.False(t, cfg.Retention.Data)
	assert.True(t, cfg.Retention.Log)
	assert.Equal(t, "bearer", cfg.ManagementAPI.Auth.Type)
	assert.Equal(t, "s3cret", cfg.ManagementAPI.Auth.Secret)
	require.NoError(t, ValidateConfig(cfg))
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"relative websocket path", func(c *Config) { c.Server.WebSocketPath = "ws" }, "websocket_path"},
		{"negative rate", func(c *Config) { c.Server.MaxFramesPerSecond = -1 }, "max_frames_per_second"},
		{"redis without addrs", func(c *Config) { c.MessageBroker.Type = "redis" }, "redis.addrs"},
		{"unknown broker", func(c *Config) { c.MessageBroker.Type = "kafka" }, "unsupported type"},
		{"bearer without secret", func(c *Config) { c.ManagementAPI.Auth.Type = "bearer" }, "secret"},
		{"unknown auth", func(c *Config) { c.ManagementAPI.Auth.Type = "jwt" }, "auth.type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(cfg)
			err := ValidateConfig(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateConfig_FillsEmptyFields(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, ValidateConfig(cfg))

	assert.Equal(t, "/", cfg.Server.WebSocketPath)
	assert.Equal(t, "mqtt", cfg.MessageBroker.Type)
	assert.Equal(t, "node-001", cfg.MessageBroker.NodeID)
	assert.Equal(t, "$SYS", cfg.MessageBroker.SystemPrefix)
	assert.Equal(t, "debug/logs", cfg.Debug.Channel)
	assert.Positive(t, cfg.Server.SendQueueSize)
}

func TestExportConfigTemplate_RoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "template.yaml")
	require.NoError(t, ExportConfigTemplate(path))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	defaults := GetDefaultConfig()
	assert.Equal(t, defaults.Server.ListenAddr, cfg.Server.ListenAddr)
	assert.Equal(t, defaults.Server.ReadLimit, cfg.Server.ReadLimit)
	assert.Equal(t, defaults.MessageBroker.MQTT, cfg.MessageBroker.MQTT)
	assert.Equal(t, defaults.Retention, cfg.Retention)
	assert.Equal(t, defaults.Signaling, cfg.Signaling)
}
