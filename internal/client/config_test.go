package client

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  url: ws://gateway:3000/
reconnect_interval: 2s
debug_channel: kiosk
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "ws://gateway:3000/", cfg.Server.URL)
	assert.Equal(t, 2*time.Second, cfg.ReconnectInterval)
	assert.Equal(t, "kiosk", cfg.DebugChannel)
	assert.True(t, cfg.RemoteLog.Enabled)
}

func TestLoadConfig_EmptyFieldsGetDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  url: \"\"\nreconnect_interval: 0s\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultServerURL, cfg.Server.URL)
	assert.Equal(t, DefaultReconnectInterval, cfg.ReconnectInterval)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
