// Package websocket 客户端 WebSocket 入口模块
// 升级后的连接交给 session.Manager，读循环在当前请求 goroutine 中运行
package websocket

import (
	"context"
	"net/http"

	"dharana-gateway/internal/constants"
	"dharana-gateway/internal/core/dispose"
	corelog "dharana-gateway/internal/core/log"
	"dharana-gateway/internal/httpservice"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const bufferSize = 4096

// WebSocketModule WebSocket 入口模块
type WebSocketModule struct {
	*dispose.ServiceBase

	config   *httpservice.WebSocketModuleConfig
	deps     *httpservice.ModuleDependencies
	upgrader websocket.Upgrader
}

// NewWebSocketModule 创建 WebSocket 模块
func NewWebSocketModule(ctx context.Context, config *httpservice.WebSocketModuleConfig) *WebSocketModule {
	if config == nil {
		config = &httpservice.DefaultHTTPServiceConfig().Modules.WebSocket
	}
	if config.Path == "" {
		config.Path = constants.DefaultWebSocketPath
	}
	if config.ReadLimit <= 0 {
		config.ReadLimit = constants.DefaultReadLimit
	}

	m := &WebSocketModule{
		ServiceBase: dispose.NewService("WebSocketModule", ctx),
		config:      config,
	}
	m.upgrader = websocket.Upgrader{
		ReadBufferSize:  bufferSize,
		WriteBufferSize: bufferSize,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || httpservice.OriginAllowed(config.AllowedOrigins, origin)
		},
	}
	return m
}

// Name 返回模块名称
func (m *WebSocketModule) Name() string {
	return "WebSocket"
}

// SetDependencies 注入依赖
func (m *WebSocketModule) SetDependencies(deps *httpservice.ModuleDependencies) {
	m.deps = deps
}

// RegisterRoutes 注册路由
func (m *WebSocketModule) RegisterRoutes(router *mux.Router) {
	if !m.config.Enabled {
		corelog.Infof("WebSocketModule: disabled, skipping route registration")
		return
	}
	router.HandleFunc(m.config.Path, m.handleWebSocket).Methods(http.MethodGet, http.MethodHead)
	corelog.Infof("WebSocketModule: registered route %s", m.config.Path)
}

// handleWebSocket 升级请求；普通 GET 返回首页
func (m *WebSocketModule) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		m.handleLandingPage(w, r)
		return
	}
	if m.deps == nil || m.deps.SessionMgr == nil {
		httpservice.RespondError(w, http.StatusServiceUnavailable, "session manager not configured")
		return
	}
	if m.IsClosed() || (m.deps.HealthManager != nil && !m.deps.HealthManager.IsAcceptingConnections()) {
		httpservice.RespondError(w, http.StatusServiceUnavailable, "gateway is draining")
		return
	}

	ws, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade 已写回错误响应
		corelog.Warnf("WebSocketModule: upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}
	ws.SetReadLimit(m.config.ReadLimit)

	c, err := m.deps.SessionMgr.Accept(ws)
	if err != nil {
		corelog.Errorf("WebSocketModule: failed to accept connection from %s: %v", r.RemoteAddr, err)
		closeMsg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "gateway unavailable")
		_ = ws.WriteMessage(websocket.CloseMessage, closeMsg)
		_ = ws.Close()
		return
	}

	m.deps.SessionMgr.Serve(c)
}

func (m *WebSocketModule) handleLandingPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write([]byte("dharana gateway: connect with a WebSocket client\n"))
}

// Start 启动模块
func (m *WebSocketModule) Start() error {
	if !m.config.Enabled {
		corelog.Infof("WebSocketModule: disabled")
		return nil
	}
	corelog.Infof("WebSocketModule: accepting connections on %s", m.config.Path)
	return nil
}

// Stop 拒绝新连接；现有连接由 session.Manager 关闭
func (m *WebSocketModule) Stop() error {
	err := m.Close()
	corelog.Infof("WebSocketModule: stopped")
	return err
}
