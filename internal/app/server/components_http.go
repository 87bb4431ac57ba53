package server

import (
	"context"
	"fmt"

	corelog "dharana-gateway/internal/core/log"
	"dharana-gateway/internal/httpservice"
	"dharana-gateway/internal/httpservice/modules/management"
	"dharana-gateway/internal/httpservice/modules/websocket"
)

// ============================================================================
// HTTPComponent - HTTP 入口组件
// ============================================================================

// HTTPComponent WebSocket 升级、健康检查与 /stats
type HTTPComponent struct {
	*BaseComponent
}

func (c *HTTPComponent) Name() string {
	return "HTTPService"
}

func (c *HTTPComponent) Initialize(ctx context.Context, deps *Dependencies) error {
	if deps.SessionMgr == nil {
		return fmt.Errorf("session manager is required")
	}
	cfg := deps.Config

	httpConfig := httpservice.DefaultHTTPServiceConfig()
	httpConfig.ListenAddr = cfg.Server.ListenAddr
	httpConfig.CORS = cfg.CORS
	httpConfig.Modules.WebSocket = httpservice.WebSocketModuleConfig{
		Enabled:        true,
		Path:           cfg.Server.WebSocketPath,
		ReadLimit:      cfg.Server.ReadLimit,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}
	httpConfig.Modules.ManagementAPI = httpservice.ManagementAPIModuleConfig{
		Enabled: cfg.ManagementAPI.Enabled,
		Auth:    cfg.ManagementAPI.Auth,
	}

	moduleDeps := &httpservice.ModuleDependencies{
		SessionMgr:    deps.SessionMgr,
		Rooms:         deps.Rooms,
		Topics:        deps.Registry,
		HealthManager: deps.HealthManager,
	}
	if deps.Metrics != nil {
		moduleDeps.Metrics = deps.Metrics
	}
	svc := httpservice.NewHTTPService(ctx, httpConfig, moduleDeps)

	if httpConfig.Modules.ManagementAPI.Enabled {
		svc.RegisterModule(management.NewManagementModule(ctx, &httpConfig.Modules.ManagementAPI))
	}
	svc.RegisterModule(websocket.NewWebSocketModule(ctx, &httpConfig.Modules.WebSocket))

	deps.HTTPService = svc
	corelog.Infof("HTTPService: configured on %s, websocket path %s", httpConfig.ListenAddr, httpConfig.Modules.WebSocket.Path)
	return nil
}
