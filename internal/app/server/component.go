package server

import (
	"context"
	"fmt"

	"dharana-gateway/internal/broker"
	"dharana-gateway/internal/command"
	corelog "dharana-gateway/internal/core/log"
	"dharana-gateway/internal/core/metrics"
	"dharana-gateway/internal/health"
	"dharana-gateway/internal/httpservice"
	"dharana-gateway/internal/room"
	"dharana-gateway/internal/session"
	"dharana-gateway/internal/subscription"
)

// ============================================================================
// 组件接口定义
// ============================================================================

// Component 服务器组件接口
// 每个组件负责自己的初始化、启动和停止逻辑
type Component interface {
	// Name 返回组件名称（用于日志和错误信息）
	Name() string

	// Initialize 初始化组件，注入依赖
	// 返回 error 表示初始化失败，服务器应该停止启动
	Initialize(ctx context.Context, deps *Dependencies) error

	Start() error
	Stop() error
}

// Dependencies 依赖容器
// 组件初始化时从这里获取依赖，初始化完成后将自己的产出注入回来
type Dependencies struct {
	Config *Config
	NodeID string

	Metrics       *metrics.MemoryMetrics
	MessageBroker broker.MessageBroker
	HealthManager *health.HealthManager

	Registry   *subscription.Registry
	Rooms      *room.Directory
	Dispatcher *command.Dispatcher
	SessionMgr *session.Manager

	HTTPService *httpservice.HTTPService

	// cleanups 按初始化顺序登记，关闭时逆序执行
	cleanups []namedCleanup
}

type namedCleanup struct {
	name string
	fn   func() error
}

// OnShutdown 登记关闭时执行的清理
func (d *Dependencies) OnShutdown(name string, fn func() error) {
	d.cleanups = append(d.cleanups, namedCleanup{name: name, fn: fn})
}

// runCleanups 构建失败时逆序释放已创建的资源
func (d *Dependencies) runCleanups() {
	for i := len(d.cleanups) - 1; i >= 0; i-- {
		if err := d.cleanups[i].fn(); err != nil {
			corelog.Warnf("Server: cleanup %s failed: %v", d.cleanups[i].name, err)
		}
	}
	d.cleanups = nil
}

// Dispose 实现 dispose.Disposable，交给 ResourceManager 逆序释放
func (c namedCleanup) Dispose() error {
	return c.fn()
}

// ============================================================================
// 基础组件实现
// ============================================================================

// BaseComponent 组件基类，提供默认的 Start/Stop 实现
type BaseComponent struct{}

func (c *BaseComponent) Start() error {
	return nil
}

func (c *BaseComponent) Stop() error {
	return nil
}

// ============================================================================
// 组件初始化错误
// ============================================================================

// ComponentError 组件初始化错误
type ComponentError struct {
	ComponentName string
	Err           error
}

func (e *ComponentError) Error() string {
	return fmt.Sprintf("component %s initialization failed: %v", e.ComponentName, e.Err)
}

func (e *ComponentError) Unwrap() error {
	return e.Err
}

// NewComponentError 创建组件错误
func NewComponentError(name string, err error) *ComponentError {
	return &ComponentError{
		ComponentName: name,
		Err:           err,
	}
}
