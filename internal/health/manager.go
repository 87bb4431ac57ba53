package health

import (
	"context"
	"sync"
	"time"

	"dharana-gateway/internal/core/dispose"
)

// HealthInfo /healthz 响应
type HealthInfo struct {
	Status            ComponentStatus             `json:"status"`
	ActiveConnections int                         `json:"active_connections"`
	ActiveRooms       int                         `json:"active_rooms"`
	Uptime            int64                       `json:"uptime_seconds"`
	NodeID            string                      `json:"node_id,omitempty"`
	Version           string                      `json:"version,omitempty"`
	Components        map[string]*ComponentHealth `json:"components,omitempty"`
	AcceptingNewConns bool                        `json:"accepting_new_connections"`
}

// HealthManager 汇总组件检查和运行统计
type HealthManager struct {
	*dispose.ServiceBase

	mu        sync.RWMutex
	draining  bool
	startTime time.Time
	nodeID    string
	version   string
	stats     GatewayStats
	checker   *CompositeHealthChecker
}

func NewHealthManager(nodeID, version string, parentCtx context.Context) *HealthManager {
	return &HealthManager{
		ServiceBase: dispose.NewService("HealthManager", parentCtx),
		startTime:   time.Now(),
		nodeID:      nodeID,
		version:     version,
		checker:     NewCompositeHealthChecker(2 * time.Second),
	}
}

func (m *HealthManager) SetStats(stats GatewayStats) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats = stats
}

// Register 注册组件检查器
func (m *HealthManager) Register(name string, checker HealthChecker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checker.RegisterChecker(name, checker)
}

// MarkDraining 优雅关闭开始，不再接受新连接
func (m *HealthManager) MarkDraining() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.draining = true
}

func (m *HealthManager) IsDraining() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.draining
}

func (m *HealthManager) IsAcceptingConnections() bool {
	return !m.IsDraining()
}

// GetHealthInfo 执行检查并汇总
func (m *HealthManager) GetHealthInfo(ctx context.Context) *HealthInfo {
	m.mu.RLock()
	stats := m.stats
	draining := m.draining
	m.mu.RUnlock()

	components := m.checker.CheckAll(ctx)
	info := &HealthInfo{
		Status:            Overall(components),
		Uptime:            int64(time.Since(m.startTime).Seconds()),
		NodeID:            m.nodeID,
		Version:           m.version,
		Components:        components,
		AcceptingNewConns: !draining,
	}
	if stats != nil {
		info.ActiveConnections = stats.ActiveConnections()
		info.ActiveRooms = stats.ActiveRooms()
	}
	if draining && info.Status == ComponentStatusHealthy {
		info.Status = ComponentStatusDegraded
	}
	return info
}
