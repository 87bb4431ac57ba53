package server

import (
	"os"
	"strconv"
	"strings"
)

// ApplyEnvOverrides 应用环境变量覆盖配置
// 环境变量优先级高于配置文件
func ApplyEnvOverrides(config *Config) {
	// Server 配置
	if v := os.Getenv("SERVER_LISTEN_ADDR"); v != "" {
		config.Server.ListenAddr = v
	}
	if v := os.Getenv("SERVER_WEBSOCKET_PATH"); v != "" {
		config.Server.WebSocketPath = v
	}
	if v := os.Getenv("SERVER_MAX_FRAMES_PER_SECOND"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Server.MaxFramesPerSecond = n
		}
	}

	// MessageBroker 配置
	if v := os.Getenv("MESSAGE_BROKER_TYPE"); v != "" {
		config.MessageBroker.Type = v
	}

	// NODE_ID 优先
	if v := os.Getenv("NODE_ID"); v != "" {
		config.MessageBroker.NodeID = v
	}
	// MESSAGE_BROKER_NODE_ID 优先级更高（可覆盖 NODE_ID）
	if v := os.Getenv("MESSAGE_BROKER_NODE_ID"); v != "" {
		config.MessageBroker.NodeID = v
	}

	if v, ok := os.LookupEnv("MESSAGE_BROKER_MQTT_LISTEN_ADDR"); ok {
		config.MessageBroker.MQTT.ListenAddr = v
	}
	if v := os.Getenv("MESSAGE_BROKER_REDIS_ADDRS"); v != "" {
		config.MessageBroker.Redis.Addrs = splitList(v)
	}
	if v := os.Getenv("MESSAGE_BROKER_REDIS_PASSWORD"); v != "" {
		config.MessageBroker.Redis.Password = v
	}
	if v := os.Getenv("MESSAGE_BROKER_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			config.MessageBroker.Redis.DB = db
		}
	}

	// 保留策略
	if v := os.Getenv("RETENTION_DATA"); v != "" {
		config.Retention.Data = parseBool(v)
	}
	if v := os.Getenv("RETENTION_LOG"); v != "" {
		config.Retention.Log = parseBool(v)
	}

	// 信令
	if v := os.Getenv("SIGNALING_DEFAULT_ROOM"); v != "" {
		config.Signaling.DefaultRoom = v
	}
	if v := os.Getenv("DEBUG_CHANNEL"); v != "" {
		config.Debug.Channel = v
	}

	// Management API
	if v := os.Getenv("MANAGEMENT_API_TOKEN"); v != "" {
		config.ManagementAPI.Auth.Type = "bearer"
		config.ManagementAPI.Auth.Secret = v
	}

	// Log 配置
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		config.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		config.Log.Format = v
	}
	if v := os.Getenv("LOG_OUTPUT"); v != "" {
		config.Log.Output = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		config.Log.File = v
	}
}

func parseBool(v string) bool {
	return v == "true" || v == "1"
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
