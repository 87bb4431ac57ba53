package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"dharana-gateway/internal/core/dispose"
)

// ServiceConfig 服务管理配置
type ServiceConfig struct {
	GracefulShutdownTimeout time.Duration
	ResourceDisposeTimeout  time.Duration
	EnableSignalHandling    bool
}

func DefaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		GracefulShutdownTimeout: 30 * time.Second,
		ResourceDisposeTimeout:  10 * time.Second,
		EnableSignalHandling:    true,
	}
}

// Service 可启停的服务
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Name() string
}

// HTTPService HTTP 服务
type HTTPService struct {
	addr    string
	handler http.Handler

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

func NewHTTPService(addr string, handler http.Handler) *HTTPService {
	return &HTTPService{addr: addr, handler: handler}
}

func (h *HTTPService) Name() string {
	return fmt.Sprintf("HTTP-Server-%s", h.addr)
}

// Start 同步监听，端口占用等错误直接返回
func (h *HTTPService) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", h.addr, err)
	}
	h.listener = ln
	srv := &http.Server{
		Handler:           h.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	h.server = srv

	Infof("Starting HTTP service on %s", ln.Addr())
	// Stop 会在锁内清空 h.server，goroutine 只使用局部副本
	SafeGo(h.Name(), func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			Errorf("HTTP service error: %v", err)
		}
	})
	return nil
}

// Addr 实际监听地址
func (h *HTTPService) Addr() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listener == nil {
		return h.addr
	}
	return h.listener.Addr().String()
}

func (h *HTTPService) Stop(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.server == nil {
		return nil
	}
	Infof("Stopping HTTP service on %s", h.addr)
	srv := h.server
	h.server = nil
	return srv.Shutdown(ctx)
}

// ServiceManager 按注册顺序启动服务，逆序停止，最后释放资源
type ServiceManager struct {
	config    *ServiceConfig
	resources *dispose.ResourceManager

	mu       sync.RWMutex
	services []Service

	shutdownOnce sync.Once
	shutdownChan chan struct{}
	stopOnce     sync.Once
	stopErr      error
	ctx          context.Context
	cancel       context.CancelFunc
}

func NewServiceManager(config *ServiceConfig) *ServiceManager {
	if config == nil {
		config = DefaultServiceConfig()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ServiceManager{
		config:       config,
		resources:    dispose.NewResourceManager(),
		shutdownChan: make(chan struct{}),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// RegisterService 注册服务，名称不可重复
func (sm *ServiceManager) RegisterService(service Service) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	for _, s := range sm.services {
		if s.Name() == service.Name() {
			return fmt.Errorf("service %s already registered", service.Name())
		}
	}
	sm.services = append(sm.services, service)
	Infof("Service registered: %s", service.Name())
	return nil
}

// RegisterResource 注册关闭时释放的资源
func (sm *ServiceManager) RegisterResource(name string, resource dispose.Disposable) error {
	return sm.resources.Register(name, resource)
}

func (sm *ServiceManager) ListServices() []string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	names := make([]string, 0, len(sm.services))
	for _, s := range sm.services {
		names = append(names, s.Name())
	}
	return names
}

func (sm *ServiceManager) StartAllServices() error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	Infof("Starting %d services...", len(sm.services))
	for _, service := range sm.services {
		if err := service.Start(sm.ctx); err != nil {
			Errorf("Failed to start service %s: %v", service.Name(), err)
			return fmt.Errorf("failed to start service %s: %w", service.Name(), err)
		}
		Infof("Service started: %s", service.Name())
	}
	return nil
}

func (sm *ServiceManager) StopAllServices() error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), sm.config.GracefulShutdownTimeout)
	defer cancel()

	var errs []error
	for i := len(sm.services) - 1; i >= 0; i-- {
		service := sm.services[i]
		if err := service.Stop(shutdownCtx); err != nil {
			Errorf("Failed to stop service %s: %v", service.Name(), err)
			errs = append(errs, err)
			continue
		}
		Infof("Service stopped: %s", service.Name())
	}
	return errors.Join(errs...)
}

// Run 启动服务并阻塞到收到信号
func (sm *ServiceManager) Run() error {
	return sm.RunWithContext(context.Background())
}

// RunWithContext 启动服务并阻塞到 ctx 取消或收到关闭信号
func (sm *ServiceManager) RunWithContext(ctx context.Context) error {
	if sm.config.EnableSignalHandling {
		sm.setupSignalHandling()
	}

	if err := sm.StartAllServices(); err != nil {
		_ = sm.Shutdown()
		return fmt.Errorf("failed to start services: %w", err)
	}

	select {
	case <-ctx.Done():
		Infof("Context cancelled, initiating shutdown")
	case <-sm.shutdownChan:
		Infof("Shutdown signal received")
	}
	return sm.Shutdown()
}

func (sm *ServiceManager) setupSignalHandling() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	SafeGo("signal-handler", func() {
		select {
		case sig := <-sigChan:
			Infof("Received signal: %v", sig)
			sm.TriggerShutdown()
		case <-sm.ctx.Done():
		}
		signal.Stop(sigChan)
	})
}

// TriggerShutdown 请求关闭，可重复调用
func (sm *ServiceManager) TriggerShutdown() {
	sm.shutdownOnce.Do(func() { close(sm.shutdownChan) })
}

// Shutdown 逆序停止服务并释放资源，只执行一次
func (sm *ServiceManager) Shutdown() error {
	sm.stopOnce.Do(func() { sm.stopErr = sm.gracefulShutdown() })
	return sm.stopErr
}

func (sm *ServiceManager) gracefulShutdown() error {
	Infof("Starting graceful shutdown...")
	if err := sm.StopAllServices(); err != nil {
		Errorf("Service shutdown error: %v", err)
	}

	err := sm.resources.DisposeWithTimeout(sm.config.ResourceDisposeTimeout)
	sm.cancel()
	if err != nil {
		Errorf("Resource disposal completed with errors: %v", err)
		return fmt.Errorf("resource disposal failed: %w", err)
	}
	Infof("Graceful shutdown completed successfully")
	return nil
}

// Context 服务运行上下文，关闭后取消
func (sm *ServiceManager) Context() context.Context {
	return sm.ctx
}
