package httpservice

import (
	"fmt"

	"dharana-gateway/internal/constants"
)

// HTTPServiceConfig HTTP 服务配置
type HTTPServiceConfig struct {
	ListenAddr string `yaml:"listen_addr"`

	// 模块配置
	Modules ModulesConfig `yaml:"modules"`

	CORS CORSConfig `yaml:"cors"`
}

// ModulesConfig 模块配置
type ModulesConfig struct {
	WebSocket     WebSocketModuleConfig     `yaml:"websocket"`
	ManagementAPI ManagementAPIModuleConfig `yaml:"management_api"`
}

// WebSocketModuleConfig 客户端 WebSocket 入口
type WebSocketModuleConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	// ReadLimit 单帧最大字节数
	ReadLimit int64 `yaml:"read_limit"`
	// AllowedOrigins 为空时允许任意来源
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// ManagementAPIModuleConfig /stats 等只读接口
type ManagementAPIModuleConfig struct {
	Enabled bool       `yaml:"enabled"`
	Auth    AuthConfig `yaml:"auth"`
}

// AuthConfig 认证配置
type AuthConfig struct {
	Type   string `yaml:"type"` // bearer / none
	Secret string `yaml:"secret"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	Enabled        bool     `yaml:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// DefaultHTTPServiceConfig 返回默认配置
func DefaultHTTPServiceConfig() *HTTPServiceConfig {
	return &HTTPServiceConfig{
		ListenAddr: fmt.Sprintf("0.0.0.0:%d", constants.DefaultWebSocketPort),
		Modules: ModulesConfig{
			WebSocket: WebSocketModuleConfig{
				Enabled:   true,
				Path:      constants.DefaultWebSocketPath,
				ReadLimit: constants.DefaultReadLimit,
			},
			ManagementAPI: ManagementAPIModuleConfig{
				Enabled: true,
				Auth:    AuthConfig{Type: "none"},
			},
		},
		CORS: CORSConfig{
			Enabled:        false,
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Authorization"},
		},
	}
}
