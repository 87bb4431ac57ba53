package client

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	corelog "dharana-gateway/internal/core/log"
	"dharana-gateway/internal/utils"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultServerURL 本机网关
	DefaultServerURL = "ws://localhost:3000/"
	// DefaultReconnectInterval 固定重连间隔
	DefaultReconnectInterval = 5 * time.Second
	// DefaultDebugChannel 远程日志频道前缀
	DefaultDebugChannel = "debug"

	configFileName = "client-config.yaml"
)

// ClientConfig 客户端配置
type ClientConfig struct {
	Server struct {
		URL string `yaml:"url"`
	} `yaml:"server"`

	// ReconnectInterval 断线后等待多久重连，唯一的时间参数
	ReconnectInterval time.Duration `yaml:"reconnect_interval"`

	// DebugChannel 远程日志发布到 <DebugChannel>/logs|warnings|errors|exceptions
	DebugChannel string `yaml:"debug_channel"`

	RemoteLog RemoteLogConfig `yaml:"remote_log"`

	Log utils.LogConfig `yaml:"log"`
}

// RemoteLogConfig 远程日志开关
type RemoteLogConfig struct {
	Enabled bool `yaml:"enabled"`
	// Extended 附带调用栈
	Extended bool `yaml:"extended"`
}

// DefaultClientConfig 默认配置
func DefaultClientConfig() *ClientConfig {
	cfg := &ClientConfig{
		ReconnectInterval: DefaultReconnectInterval,
		DebugChannel:      DefaultDebugChannel,
		RemoteLog:         RemoteLogConfig{Enabled: true},
		Log: utils.LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
	cfg.Server.URL = DefaultServerURL
	return cfg
}

// applyDefaults 填充空字段
func (c *ClientConfig) applyDefaults() {
	if c.Server.URL == "" {
		c.Server.URL = DefaultServerURL
	}
	if c.ReconnectInterval <= 0 {
		c.ReconnectInterval = DefaultReconnectInterval
	}
	if c.DebugChannel == "" {
		c.DebugChannel = DefaultDebugChannel
	}
}

// LoadConfig 加载配置
// path 为空时依次尝试工作目录和 ~/.dharana 下的 client-config.yaml，都不存在时使用默认配置
func LoadConfig(path string) (*ClientConfig, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}
	for _, candidate := range searchPaths() {
		cfg, err := loadConfigFromFile(candidate)
		if err == nil {
			corelog.Infof("Client: loaded config from %s", candidate)
			return cfg, nil
		}
		if !os.IsNotExist(err) {
			corelog.Warnf("Client: failed to load config from %s: %v", candidate, err)
		}
	}
	return DefaultClientConfig(), nil
}

func loadConfigFromFile(path string) (*ClientConfig, error) {
	expanded, err := utils.ExpandPath(path)
	if err != nil {
		return nil, fmt.Errorf("failed to expand config path %q: %w", path, err)
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, err
	}
	cfg := DefaultClientConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", expanded, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func searchPaths() []string {
	paths := []string{configFileName}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".dharana", configFileName))
	}
	return paths
}
