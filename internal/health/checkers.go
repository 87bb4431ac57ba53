package health

import (
	"context"
	"time"
)

// BrokerChecker 消息代理检查接口
type BrokerChecker interface {
	Ping(ctx context.Context) error
}

// BrokerHealthChecker 消息代理健康检查
type BrokerHealthChecker struct {
	broker BrokerChecker
}

func NewBrokerHealthChecker(broker BrokerChecker) *BrokerHealthChecker {
	return &BrokerHealthChecker{broker: broker}
}

func (c *BrokerHealthChecker) Check(ctx context.Context) (*ComponentHealth, error) {
	h := &ComponentHealth{Name: "broker", Status: ComponentStatusHealthy, LastCheck: time.Now()}
	if c.broker == nil {
		h.Status = ComponentStatusUnhealthy
		h.Message = "broker not configured"
		return h, nil
	}
	if err := c.broker.Ping(ctx); err != nil {
		h.Status = ComponentStatusUnhealthy
		h.Message = err.Error()
	}
	return h, nil
}

// GatewayStats 网关运行统计
type GatewayStats interface {
	ActiveConnections() int
	ActiveRooms() int
}

// GatewayHealthChecker 连接层健康检查
// 网关关闭后不再接受连接，视为降级
type GatewayHealthChecker struct {
	stats    GatewayStats
	draining func() bool
}

func NewGatewayHealthChecker(stats GatewayStats, draining func() bool) *GatewayHealthChecker {
	return &GatewayHealthChecker{stats: stats, draining: draining}
}

func (c *GatewayHealthChecker) Check(ctx context.Context) (*ComponentHealth, error) {
	h := &ComponentHealth{Name: "gateway", Status: ComponentStatusHealthy, LastCheck: time.Now()}
	if c.stats == nil {
		h.Status = ComponentStatusDegraded
		h.Message = "session manager not configured"
		return h, nil
	}
	if c.draining != nil && c.draining() {
		h.Status = ComponentStatusDegraded
		h.Message = "draining"
		return h, nil
	}
	if c.stats.ActiveConnections() == 0 {
		h.Message = "no active connections"
	}
	return h, nil
}
