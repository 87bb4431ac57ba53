// Package management 网关只读管理接口
// 连接、房间、订阅与指标快照
package management

import (
	"context"
	"fmt"
	"net/http"

	"dharana-gateway/internal/core/dispose"
	corelog "dharana-gateway/internal/core/log"
	"dharana-gateway/internal/core/metrics"
	"dharana-gateway/internal/httpservice"

	"github.com/gorilla/mux"
)

// ManagementModule 管理 API 模块
type ManagementModule struct {
	*dispose.ServiceBase

	config *httpservice.ManagementAPIModuleConfig
	deps   *httpservice.ModuleDependencies
}

// NewManagementModule 创建管理 API 模块
func NewManagementModule(ctx context.Context, config *httpservice.ManagementAPIModuleConfig) *ManagementModule {
	if config == nil {
		config = &httpservice.DefaultHTTPServiceConfig().Modules.ManagementAPI
	}
	return &ManagementModule{
		ServiceBase: dispose.NewService("ManagementModule", ctx),
		config:      config,
	}
}

// Name 返回模块名称
func (m *ManagementModule) Name() string {
	return "ManagementAPI"
}

// SetDependencies 注入依赖
func (m *ManagementModule) SetDependencies(deps *httpservice.ModuleDependencies) {
	m.deps = deps
}

// RegisterRoutes 注册路由
func (m *ManagementModule) RegisterRoutes(router *mux.Router) {
	if !m.config.Enabled {
		corelog.Infof("ManagementModule: disabled, skipping route registration")
		return
	}

	auth := httpservice.AuthMiddleware(&m.config.Auth)
	router.Handle("/stats", auth(http.HandlerFunc(m.handleGetStats))).Methods(http.MethodGet)
	router.Handle("/stats/connections", auth(http.HandlerFunc(m.handleListConnections))).Methods(http.MethodGet)
	router.Handle("/stats/rooms/{room_id}", auth(http.HandlerFunc(m.handleGetRoom))).Methods(http.MethodGet)
	router.Handle("/stats/topics/{topic:.+}", auth(http.HandlerFunc(m.handleGetTopic))).Methods(http.MethodGet)

	corelog.Infof("ManagementModule: registered routes at /stats")
}

// Start 启动模块
func (m *ManagementModule) Start() error {
	return nil
}

// Stop 停止模块
func (m *ManagementModule) Stop() error {
	return m.Close()
}

func (m *ManagementModule) metricsSource() metrics.Metrics {
	if m.deps != nil && m.deps.Metrics != nil {
		return m.deps.Metrics
	}
	return metrics.GetGlobalMetrics()
}

// getStringPathVar 获取路径参数
func getStringPathVar(r *http.Request, key string) (string, error) {
	str := mux.Vars(r)[key]
	if str == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return str, nil
}
