package server

import (
	"context"
	"fmt"
	"time"

	"dharana-gateway/internal/command"
	corelog "dharana-gateway/internal/core/log"
	"dharana-gateway/internal/health"
	"dharana-gateway/internal/packet"
	"dharana-gateway/internal/room"
	"dharana-gateway/internal/session"
	"dharana-gateway/internal/subscription"
)

// ============================================================================
// SubscriptionComponent - 订阅注册表组件
// ============================================================================

type SubscriptionComponent struct {
	*BaseComponent
}

func (c *SubscriptionComponent) Name() string {
	return "Subscription"
}

func (c *SubscriptionComponent) Initialize(ctx context.Context, deps *Dependencies) error {
	if deps.MessageBroker == nil {
		return fmt.Errorf("message broker is required")
	}
	registry := subscription.NewRegistry(ctx, deps.MessageBroker, corelog.Default())
	deps.Registry = registry
	deps.OnShutdown("subscription-registry", registry.Close)
	return nil
}

// ============================================================================
// RoomComponent - 房间目录组件
// ============================================================================

type RoomComponent struct {
	*BaseComponent
}

func (c *RoomComponent) Name() string {
	return "Room"
}

func (c *RoomComponent) Initialize(ctx context.Context, deps *Dependencies) error {
	deps.Rooms = room.NewDirectory(deps.Config.Signaling.BroadcastTarget, corelog.Default())
	return nil
}

// ============================================================================
// DispatcherComponent - 命令分发组件
// ============================================================================

type DispatcherComponent struct {
	*BaseComponent
}

func (c *DispatcherComponent) Name() string {
	return "Dispatcher"
}

func (c *DispatcherComponent) Initialize(ctx context.Context, deps *Dependencies) error {
	if deps.Registry == nil || deps.Rooms == nil {
		return fmt.Errorf("subscription registry and room directory are required")
	}
	cfg := deps.Config
	d := command.NewDispatcher(&command.Config{
		DefaultRoom:  cfg.Signaling.DefaultRoom,
		DebugChannel: cfg.Debug.Channel,
		RetainData:   cfg.Retention.Data,
		RetainLog:    cfg.Retention.Log,
	}, packet.Parser{SelfTestMarker: cfg.Signaling.SelfTestMarker}, deps.MessageBroker, deps.Registry, deps.Rooms)
	d.Use(&command.LoggingMiddleware{}, &command.MetricsMiddleware{})
	deps.Dispatcher = d

	corelog.Infof("Dispatcher: default room=%s, debug channel=%s, retain data=%v log=%v",
		cfg.Signaling.DefaultRoom, cfg.Debug.Channel, cfg.Retention.Data, cfg.Retention.Log)
	return nil
}

// ============================================================================
// SessionComponent - 连接管理组件
// ============================================================================

type SessionComponent struct {
	*BaseComponent
}

func (c *SessionComponent) Name() string {
	return "Session"
}

func (c *SessionComponent) Initialize(ctx context.Context, deps *Dependencies) error {
	if deps.Dispatcher == nil {
		return fmt.Errorf("dispatcher is required")
	}
	srv := deps.Config.Server
	mgr := session.NewManager(ctx, &session.Config{
		SendQueueSize:      srv.SendQueueSize,
		WriteWait:          time.Duration(srv.WriteWait) * time.Second,
		MaxFramesPerSecond: srv.MaxFramesPerSecond,
	}, deps.Registry, deps.Rooms, deps.Dispatcher)
	deps.SessionMgr = mgr
	deps.OnShutdown("session-manager", mgr.Close)

	if hm := deps.HealthManager; hm != nil {
		hm.SetStats(mgr)
		hm.Register("gateway", health.NewGatewayHealthChecker(mgr, hm.IsDraining))
	}
	return nil
}
