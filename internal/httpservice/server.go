package httpservice

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"dharana-gateway/internal/core/dispose"
	corelog "dharana-gateway/internal/core/log"
	"dharana-gateway/internal/health"
	"dharana-gateway/internal/utils"

	"github.com/gorilla/mux"
)

// HealthResponse 未配置 HealthManager 时的 /healthz 响应
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// ReadyResponse /ready 响应
type ReadyResponse struct {
	Ready  bool   `json:"ready"`
	Status string `json:"status"`
}

// HTTPService 网关 HTTP 入口
// 管理所有 HTTP 模块，实现 utils.Service
type HTTPService struct {
	*dispose.ServiceBase

	config   *HTTPServiceConfig
	router   *mux.Router
	listener *utils.HTTPService
	modules  []HTTPModule
	deps     *ModuleDependencies

	routesOnce sync.Once
}

var _ utils.Service = (*HTTPService)(nil)

// NewHTTPService 创建 HTTP 服务
func NewHTTPService(ctx context.Context, config *HTTPServiceConfig, deps *ModuleDependencies) *HTTPService {
	if config == nil {
		config = DefaultHTTPServiceConfig()
	}
	if deps == nil {
		deps = &ModuleDependencies{}
	}

	s := &HTTPService{
		ServiceBase: dispose.NewService("HTTPService", ctx),
		config:      config,
		router:      mux.NewRouter(),
		deps:        deps,
	}
	s.listener = utils.NewHTTPService(config.ListenAddr, s.router)

	s.AddCleanHandler(func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.listener.Stop(shutdownCtx)
	})
	return s
}

// RegisterModule 注册模块并注入依赖
func (s *HTTPService) RegisterModule(module HTTPModule) {
	if module == nil {
		return
	}
	module.SetDependencies(s.deps)
	s.modules = append(s.modules, module)
	corelog.Infof("HTTPService: registered module %s", module.Name())
}

// GetDependencies 获取依赖
func (s *HTTPService) GetDependencies() *ModuleDependencies {
	return s.deps
}

// Name 实现 utils.Service
func (s *HTTPService) Name() string {
	return "HTTPService"
}

// Handler 完成路由注册后的 http.Handler
func (s *HTTPService) Handler() http.Handler {
	s.setupRoutes()
	return s.router
}

func (s *HTTPService) setupRoutes() {
	s.routesOnce.Do(func() {
		s.router.Use(loggingMiddleware)
		s.router.Use(corsMiddleware(&s.config.CORS))

		// 健康检查优先于模块路由，WebSocket 路径可能是 "/"
		s.registerHealthRoutes()

		for _, module := range s.modules {
			corelog.Debugf("HTTPService: registering routes for module %s", module.Name())
			module.RegisterRoutes(s.router)
		}
	})
}

// Start 启动模块并同步监听
func (s *HTTPService) Start(ctx context.Context) error {
	s.setupRoutes()

	for _, module := range s.modules {
		if err := module.Start(); err != nil {
			corelog.Errorf("HTTPService: failed to start module %s: %v", module.Name(), err)
			return err
		}
	}

	if err := s.listener.Start(ctx); err != nil {
		return err
	}
	s.logEndpoints()
	return nil
}

// Stop 标记排空，停止模块（逆序）后关闭监听
func (s *HTTPService) Stop(ctx context.Context) error {
	corelog.Infof("HTTPService: stopping...")
	if s.deps.HealthManager != nil {
		s.deps.HealthManager.MarkDraining()
	}

	var errs []error
	for i := len(s.modules) - 1; i >= 0; i-- {
		module := s.modules[i]
		if err := module.Stop(); err != nil {
			corelog.Warnf("HTTPService: failed to stop module %s: %v", module.Name(), err)
			errs = append(errs, err)
		}
	}
	if err := s.listener.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Addr 实际监听地址
func (s *HTTPService) Addr() string {
	return s.listener.Addr()
}

func (s *HTTPService) registerHealthRoutes() {
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	s.router.HandleFunc("/ready", s.handleReady).Methods(http.MethodGet)
}

// handleHealthz 健康检查，非 healthy 返回 503
func (s *HTTPService) handleHealthz(w http.ResponseWriter, r *http.Request) {
	hm := s.deps.HealthManager
	if hm == nil {
		RespondJSON(w, http.StatusOK, HealthResponse{
			Status: string(health.ComponentStatusHealthy),
			Time:   time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	info := hm.GetHealthInfo(r.Context())
	statusCode := http.StatusOK
	if info.Status != health.ComponentStatusHealthy {
		statusCode = http.StatusServiceUnavailable
	}
	RespondJSON(w, statusCode, info)
}

// handleReady 就绪检查
func (s *HTTPService) handleReady(w http.ResponseWriter, r *http.Request) {
	hm := s.deps.HealthManager
	if hm == nil || hm.IsAcceptingConnections() {
		RespondJSON(w, http.StatusOK, ReadyResponse{Ready: true, Status: "accepting_connections"})
		return
	}
	RespondJSON(w, http.StatusServiceUnavailable, ReadyResponse{Ready: false, Status: "draining"})
}

func (s *HTTPService) logEndpoints() {
	addr := s.Addr()
	corelog.Infof("HTTPService: listening on %s", addr)
	corelog.Infof("HTTPService: health endpoints GET /healthz, GET /ready")
	for _, module := range s.modules {
		corelog.Infof("HTTPService: module %s enabled", module.Name())
	}
}

// GetRouter 获取路由器（供测试使用）
func (s *HTTPService) GetRouter() *mux.Router {
	return s.router
}

// GetConfig 获取配置
func (s *HTTPService) GetConfig() *HTTPServiceConfig {
	return s.config
}
