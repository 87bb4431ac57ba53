package health

import (
	"context"
	"sort"
	"time"
)

// ComponentStatus 组件状态
type ComponentStatus string

const (
	ComponentStatusHealthy   ComponentStatus = "healthy"
	ComponentStatusDegraded  ComponentStatus = "degraded"
	ComponentStatusUnhealthy ComponentStatus = "unhealthy"
)

// ComponentHealth 组件健康信息
type ComponentHealth struct {
	Name      string          `json:"name"`
	Status    ComponentStatus `json:"status"`
	Message   string          `json:"message,omitempty"`
	LastCheck time.Time       `json:"last_check"`
}

// HealthChecker 组件健康检查
type HealthChecker interface {
	Check(ctx context.Context) (*ComponentHealth, error)
}

// CompositeHealthChecker 组合多个检查器，每个检查单独限时
type CompositeHealthChecker struct {
	names    []string
	checkers map[string]HealthChecker
	timeout  time.Duration
}

func NewCompositeHealthChecker(timeout time.Duration) *CompositeHealthChecker {
	return &CompositeHealthChecker{
		checkers: make(map[string]HealthChecker),
		timeout:  timeout,
	}
}

// RegisterChecker 注册检查器，仅在启动阶段调用
func (c *CompositeHealthChecker) RegisterChecker(name string, checker HealthChecker) {
	if _, exists := c.checkers[name]; !exists {
		c.names = append(c.names, name)
		sort.Strings(c.names)
	}
	c.checkers[name] = checker
}

// CheckAll 执行全部检查
func (c *CompositeHealthChecker) CheckAll(ctx context.Context) map[string]*ComponentHealth {
	results := make(map[string]*ComponentHealth, len(c.names))
	for _, name := range c.names {
		checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
		h, err := c.checkers[name].Check(checkCtx)
		cancel()

		if err != nil {
			h = &ComponentHealth{
				Name:      name,
				Status:    ComponentStatusUnhealthy,
				Message:   err.Error(),
				LastCheck: time.Now(),
			}
		}
		if h != nil {
			results[name] = h
		}
	}
	return results
}

// Overall 汇总状态：任一不健康即不健康，任一降级即降级
func Overall(results map[string]*ComponentHealth) ComponentStatus {
	status := ComponentStatusHealthy
	for _, h := range results {
		switch h.Status {
		case ComponentStatusUnhealthy:
			return ComponentStatusUnhealthy
		case ComponentStatusDegraded:
			status = ComponentStatusDegraded
		}
	}
	return status
}
