// Package httpservice 网关 HTTP 服务框架
// 各模块自注册路由，独立配置启用/禁用
package httpservice

import (
	"dharana-gateway/internal/conn"
	"dharana-gateway/internal/core/metrics"
	"dharana-gateway/internal/health"
	"dharana-gateway/internal/packet"
	"dharana-gateway/internal/session"

	"github.com/gorilla/mux"
)

// HTTPModule HTTP 服务模块接口
type HTTPModule interface {
	// Name 模块名称（用于日志）
	Name() string

	// RegisterRoutes 注册路由到 router
	RegisterRoutes(router *mux.Router)

	// SetDependencies 注入依赖
	SetDependencies(deps *ModuleDependencies)

	Start() error
	Stop() error
}

// ModuleDependencies 模块公共依赖
type ModuleDependencies struct {
	SessionMgr    SessionManagerInterface
	Rooms         RoomDirectory
	Topics        TopicRegistry
	HealthManager *health.HealthManager
	// Metrics 为空时使用全局指标
	Metrics metrics.Metrics
}

// SessionManagerInterface 连接管理器接口
type SessionManagerInterface interface {
	Accept(t session.Transport) (*session.Connection, error)
	Serve(c *session.Connection)
	ActiveConnections() int
	ActiveRooms() int
	List() []*conn.Info
}

// RoomDirectory 房间查询接口
type RoomDirectory interface {
	Rooms() []string
	Members(roomID string) []packet.PeerInfo
}

// TopicRegistry 订阅查询接口
type TopicRegistry interface {
	ActiveTopics() int
	Count(topic string) int
}

var (
	_ SessionManagerInterface = (*session.Manager)(nil)
)
