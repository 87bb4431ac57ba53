package server

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dharana-gateway/internal/broker"
	"dharana-gateway/internal/constants"
	corelog "dharana-gateway/internal/core/log"
	"dharana-gateway/internal/httpservice"
	"dharana-gateway/internal/utils"

	"gopkg.in/yaml.v3"
)

// ServerConfig WebSocket 入口配置
type ServerConfig struct {
	ListenAddr    string `yaml:"listen_addr"`
	WebSocketPath string `yaml:"websocket_path"`
	// ReadLimit 单帧最大字节数
	ReadLimit     int64 `yaml:"read_limit"`
	SendQueueSize int   `yaml:"send_queue_size"`
	WriteWait     int   `yaml:"write_wait"` // 秒
	// MaxFramesPerSecond 每连接入站限速，0 不限速
	MaxFramesPerSecond int      `yaml:"max_frames_per_second"`
	AllowedOrigins     []string `yaml:"allowed_origins"`
}

// MessageBrokerConfig 消息代理配置
type MessageBrokerConfig struct {
	Type         string            `yaml:"type"` // mqtt | redis | memory
	NodeID       string            `yaml:"node_id"`
	SystemPrefix string            `yaml:"system_prefix"`
	MQTT         MQTTBrokerConfig  `yaml:"mqtt"`
	Redis        RedisBrokerConfig `yaml:"redis"`
}

// MQTTBrokerConfig 内嵌 MQTT 代理
type MQTTBrokerConfig struct {
	// ListenAddr 为空时不开放 MQTT 端口
	ListenAddr string `yaml:"listen_addr"`
}

// RedisBrokerConfig Redis 消息代理
type RedisBrokerConfig struct {
	Addrs       []string `yaml:"addrs"`
	Password    string   `yaml:"password"`
	DB          int      `yaml:"db"`
	PoolSize    int      `yaml:"pool_size"`
	ClusterMode bool     `yaml:"cluster_mode"`
	KeyPrefix   string   `yaml:"key_prefix"`
}

// RetentionConfig 按消息类别的保留策略
type RetentionConfig struct {
	Data bool `yaml:"data"`
	Log  bool `yaml:"log"`
}

// SignalingConfig 信令配置
type SignalingConfig struct {
	DefaultRoom     string `yaml:"default_room"`
	BroadcastTarget string `yaml:"broadcast_target"`
	SelfTestMarker  string `yaml:"self_test_marker"`
}

// DebugConfig debug_log 配置
type DebugConfig struct {
	Channel string `yaml:"channel"`
}

// ManagementAPIConfig /stats 接口配置
type ManagementAPIConfig struct {
	Enabled bool                   `yaml:"enabled"`
	Auth    httpservice.AuthConfig `yaml:"auth"`
}

// Config 应用配置
type Config struct {
	Server        ServerConfig           `yaml:"server"`
	MessageBroker MessageBrokerConfig    `yaml:"message_broker"`
	Retention     RetentionConfig        `yaml:"retention"`
	Signaling     SignalingConfig        `yaml:"signaling"`
	Debug         DebugConfig            `yaml:"debug"`
	ManagementAPI ManagementAPIConfig    `yaml:"management_api"`
	CORS          httpservice.CORSConfig `yaml:"cors"`
	Log           utils.LogConfig        `yaml:"log"`
}

// LoadConfig 加载配置文件，文件不存在时使用默认配置
// 文件中未出现的字段保持默认值
func LoadConfig(configPath string) (*Config, error) {
	config := GetDefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		corelog.Warnf(constants.MsgConfigFileNotFound, configPath)
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf(constants.MsgFailedToReadConfigFile, configPath, err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf(constants.MsgFailedToParseConfigFile, configPath, err)
		}
		corelog.Infof(constants.MsgConfigLoadedFrom, configPath)
	}

	// 环境变量优先级高于配置文件
	ApplyEnvOverrides(config)

	if err := prepareLogFile(&config.Log); err != nil {
		return nil, err
	}
	if err := ValidateConfig(config); err != nil {
		return nil, fmt.Errorf(constants.MsgInvalidConfiguration, err)
	}
	return config, nil
}

func prepareLogFile(log *utils.LogConfig) error {
	if log.Output != constants.LogOutputFile {
		return nil
	}
	if log.File == "" {
		log.File = utils.GetDefaultServerLogPath()
		return nil
	}
	expandedPath, err := utils.ExpandPath(log.File)
	if err != nil {
		return fmt.Errorf("failed to expand log file path %q: %w", log.File, err)
	}
	log.File = expandedPath

	logDir := filepath.Dir(log.File)
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return fmt.Errorf("failed to create log directory %q: %w", logDir, err)
	}
	return nil
}

// ValidateConfig 验证配置并填充缺省值
func ValidateConfig(config *Config) error {
	if config.Server.ListenAddr == "" {
		config.Server.ListenAddr = fmt.Sprintf("0.0.0.0:%d", constants.DefaultWebSocketPort)
	}
	if config.Server.WebSocketPath == "" {
		config.Server.WebSocketPath = constants.DefaultWebSocketPath
	}
	if !strings.HasPrefix(config.Server.WebSocketPath, "/") {
		return fmt.Errorf("server.websocket_path must start with '/': %q", config.Server.WebSocketPath)
	}
	if config.Server.ReadLimit <= 0 {
		config.Server.ReadLimit = constants.DefaultReadLimit
	}
	if config.Server.SendQueueSize <= 0 {
		config.Server.SendQueueSize = constants.DefaultSendQueueSize
	}
	if config.Server.WriteWait <= 0 {
		config.Server.WriteWait = int(constants.DefaultWriteWait.Seconds())
	}
	if config.Server.MaxFramesPerSecond < 0 {
		return fmt.Errorf("server.max_frames_per_second must not be negative")
	}

	if err := validateBrokerConfig(&config.MessageBroker); err != nil {
		return fmt.Errorf("invalid message_broker config: %w", err)
	}

	if config.Signaling.DefaultRoom == "" {
		config.Signaling.DefaultRoom = constants.DefaultRoomID
	}
	if config.Signaling.BroadcastTarget == "" {
		config.Signaling.BroadcastTarget = constants.BroadcastTarget
	}
	if config.Signaling.SelfTestMarker == "" {
		config.Signaling.SelfTestMarker = constants.DefaultSelfTestMarker
	}
	if config.Debug.Channel == "" {
		config.Debug.Channel = constants.DefaultDebugChannel
	}

	switch config.ManagementAPI.Auth.Type {
	case "", "none":
		config.ManagementAPI.Auth.Type = "none"
	case "bearer":
		if config.ManagementAPI.Auth.Secret == "" {
			return fmt.Errorf("management_api.auth.secret is required for bearer auth")
		}
	default:
		return fmt.Errorf("unsupported management_api.auth.type: %s", config.ManagementAPI.Auth.Type)
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	return nil
}

func validateBrokerConfig(config *MessageBrokerConfig) error {
	if config.Type == "" {
		config.Type = string(broker.BrokerTypeMQTT)
	}
	if config.NodeID == "" {
		config.NodeID = "node-001"
	}
	if config.SystemPrefix == "" {
		config.SystemPrefix = constants.DefaultSystemTopicPrefix
	}

	switch broker.BrokerType(config.Type) {
	case broker.BrokerTypeMQTT, broker.BrokerTypeMemory:
	case broker.BrokerTypeRedis:
		if len(config.Redis.Addrs) == 0 {
			return fmt.Errorf("redis.addrs is required for redis broker")
		}
	default:
		return fmt.Errorf("unsupported type: %s", config.Type)
	}
	return nil
}

// BrokerConfig 转换为 broker 包的配置
func (c *MessageBrokerConfig) BrokerConfig() *broker.BrokerConfig {
	return &broker.BrokerConfig{
		Type:         broker.BrokerType(c.Type),
		NodeID:       c.NodeID,
		SystemPrefix: c.SystemPrefix,
		MQTT: &broker.MQTTBrokerConfig{
			ListenAddress: c.MQTT.ListenAddr,
		},
		Redis: &broker.RedisBrokerConfig{
			Addrs:       c.Redis.Addrs,
			Password:    c.Redis.Password,
			DB:          c.Redis.DB,
			PoolSize:    c.Redis.PoolSize,
			ClusterMode: c.Redis.ClusterMode,
			KeyPrefix:   c.Redis.KeyPrefix,
		},
	}
}

// GetDefaultConfig 获取默认配置
func GetDefaultConfig() *Config {
	httpDefaults := httpservice.DefaultHTTPServiceConfig()
	return &Config{
		Server: ServerConfig{
			ListenAddr:    fmt.Sprintf("0.0.0.0:%d", constants.DefaultWebSocketPort),
			WebSocketPath: constants.DefaultWebSocketPath,
			ReadLimit:     constants.DefaultReadLimit,
			SendQueueSize: constants.DefaultSendQueueSize,
			WriteWait:     int(constants.DefaultWriteWait.Seconds()),
		},
		MessageBroker: MessageBrokerConfig{
			Type:         string(broker.BrokerTypeMQTT),
			NodeID:       "node-001",
			SystemPrefix: constants.DefaultSystemTopicPrefix,
			MQTT: MQTTBrokerConfig{
				ListenAddr: fmt.Sprintf("0.0.0.0:%d", constants.DefaultMQTTPort),
			},
		},
		Retention: RetentionConfig{
			Data: true,
			Log:  false,
		},
		Signaling: SignalingConfig{
			DefaultRoom:     constants.DefaultRoomID,
			BroadcastTarget: constants.BroadcastTarget,
			SelfTestMarker:  constants.DefaultSelfTestMarker,
		},
		Debug: DebugConfig{
			Channel: constants.DefaultDebugChannel,
		},
		ManagementAPI: ManagementAPIConfig{
			Enabled: true,
			Auth:    httpservice.AuthConfig{Type: "none"},
		},
		CORS: httpDefaults.CORS,
		Log: utils.LogConfig{
			Level:  "info",
			Format: constants.LogFormatText,
			Output: constants.LogOutputStdout,
		},
	}
}

// ExportConfigTemplate 导出默认配置
func ExportConfigTemplate(path string) error {
	data, err := yaml.Marshal(GetDefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config template %s: %w", path, err)
	}
	return nil
}
