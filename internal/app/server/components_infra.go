package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"dharana-gateway/internal/broker"
	corelog "dharana-gateway/internal/core/log"
	"dharana-gateway/internal/core/metrics"
	"dharana-gateway/internal/health"
	"dharana-gateway/internal/utils"
	"dharana-gateway/internal/version"

	"github.com/sirupsen/logrus"
)

// ============================================================================
// MetricsComponent - 指标组件
// ============================================================================

// MetricsComponent 进程内指标
type MetricsComponent struct {
	*BaseComponent
}

func (c *MetricsComponent) Name() string {
	return "Metrics"
}

func (c *MetricsComponent) Initialize(ctx context.Context, deps *Dependencies) error {
	m := metrics.NewMemoryMetrics(ctx)
	if err := metrics.SetGlobalMetrics(m); err != nil {
		return fmt.Errorf("failed to set global metrics: %w", err)
	}
	deps.Metrics = m
	deps.OnShutdown("metrics", m.Close)

	corelog.Infof("Metrics: memory metrics initialized")
	return nil
}

// ============================================================================
// MessageBrokerComponent - 消息代理组件
// ============================================================================

// MessageBrokerComponent 按配置创建 mqtt / redis / memory 代理
type MessageBrokerComponent struct {
	*BaseComponent
}

func (c *MessageBrokerComponent) Name() string {
	return "MessageBroker"
}

func (c *MessageBrokerComponent) Initialize(ctx context.Context, deps *Dependencies) error {
	cfg := deps.Config.MessageBroker.BrokerConfig()
	deps.NodeID = cfg.NodeID

	var mochiLog io.Closer
	if cfg.Type == broker.BrokerTypeMQTT {
		// mochi 的 slog 输出并入 logrus，统一格式与级别
		w := utils.Logger.WriterLevel(logrus.DebugLevel)
		cfg.MQTT.Logger = slog.New(slog.NewTextHandler(w, nil))
		mochiLog = w
	}

	b, err := broker.NewMessageBroker(ctx, cfg)
	if err != nil {
		if mochiLog != nil {
			_ = mochiLog.Close()
		}
		return fmt.Errorf("failed to create message broker: %w", err)
	}
	deps.MessageBroker = b
	deps.OnShutdown("message-broker", func() error {
		err := b.Close()
		if mochiLog != nil {
			_ = mochiLog.Close()
		}
		return err
	})

	corelog.Infof("MessageBroker: initialized type=%s node=%s", cfg.Type, cfg.NodeID)
	return nil
}

// ============================================================================
// HealthComponent - 健康检查组件
// ============================================================================

// HealthComponent 健康管理器与代理检查
// 连接层检查在 SessionComponent 中注册
type HealthComponent struct {
	*BaseComponent
}

func (c *HealthComponent) Name() string {
	return "Health"
}

func (c *HealthComponent) Initialize(ctx context.Context, deps *Dependencies) error {
	if deps.MessageBroker == nil {
		return fmt.Errorf("message broker is required")
	}
	hm := health.NewHealthManager(deps.NodeID, version.GetShortVersion(), ctx)
	hm.Register("broker", health.NewBrokerHealthChecker(deps.MessageBroker))
	deps.HealthManager = hm
	deps.OnShutdown("health", hm.Close)
	return nil
}
