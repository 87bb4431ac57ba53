package server

import (
	"context"
	"fmt"

	corelog "dharana-gateway/internal/core/log"
	"dharana-gateway/internal/utils"
)

// ============================================================================
// ServerBuilder - 服务器构建器
// ============================================================================

// ServerBuilder 服务器构建器
// 使用 Builder 模式组装网关，组件按添加顺序初始化
type ServerBuilder struct {
	config     *Config
	components []Component
	deps       *Dependencies
}

// NewServerBuilder 创建服务器构建器
func NewServerBuilder(config *Config) *ServerBuilder {
	return &ServerBuilder{
		config:     config,
		components: make([]Component, 0),
		deps:       &Dependencies{Config: config},
	}
}

// With 添加组件
func (b *ServerBuilder) With(c Component) *ServerBuilder {
	b.components = append(b.components, c)
	return b
}

// WithDefaults 添加默认组件（按依赖顺序）
func (b *ServerBuilder) WithDefaults() *ServerBuilder {
	return b.
		With(&MetricsComponent{}).
		With(&MessageBrokerComponent{}).
		With(&HealthComponent{}).
		With(&SubscriptionComponent{}).
		With(&RoomComponent{}).
		With(&DispatcherComponent{}).
		With(&SessionComponent{}).
		With(&HTTPComponent{})
}

// Build 构建服务器
// 按顺序初始化所有组件，任一组件失败时释放已创建的资源并返回错误
func (b *ServerBuilder) Build(parentCtx context.Context) (*Server, error) {
	if b.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := ValidateConfig(b.config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// 日志先于组件初始化
	if err := utils.InitLogger(&b.config.Log); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	for _, c := range b.components {
		corelog.Debugf("Server: initializing component %s", c.Name())
		if err := c.Initialize(parentCtx, b.deps); err != nil {
			b.deps.runCleanups()
			return nil, NewComponentError(c.Name(), err)
		}
		corelog.Debugf("Server: component %s initialized", c.Name())
	}
	if b.deps.HTTPService == nil {
		b.deps.runCleanups()
		return nil, fmt.Errorf("no HTTP service configured")
	}

	server := &Server{
		config:     b.config,
		deps:       b.deps,
		components: b.components,
	}
	if err := server.createServiceManager(); err != nil {
		b.deps.runCleanups()
		return nil, err
	}
	return server, nil
}
