package server

import (
	"context"
	"errors"
	"fmt"

	"dharana-gateway/internal/broker"
	"dharana-gateway/internal/constants"
	corelog "dharana-gateway/internal/core/log"
	"dharana-gateway/internal/health"
	"dharana-gateway/internal/httpservice"
	"dharana-gateway/internal/room"
	"dharana-gateway/internal/session"
	"dharana-gateway/internal/subscription"
	"dharana-gateway/internal/utils"
)

// Server 网关进程
type Server struct {
	config         *Config
	deps           *Dependencies
	components     []Component
	serviceManager *utils.ServiceManager
}

// New 使用默认组件创建网关
func New(config *Config, parentCtx context.Context) (*Server, error) {
	return NewServerBuilder(config).WithDefaults().Build(parentCtx)
}

func (s *Server) createServiceManager() error {
	serviceConfig := utils.DefaultServiceConfig()
	s.serviceManager = utils.NewServiceManager(serviceConfig)

	// 组件先于 HTTP 启动，晚于 HTTP 停止
	if err := s.serviceManager.RegisterService(&componentService{components: s.components}); err != nil {
		return err
	}
	if err := s.serviceManager.RegisterService(s.deps.HTTPService); err != nil {
		return err
	}

	// 资源按初始化顺序登记，关闭时逆序释放：连接、注册表、代理、指标
	for _, c := range s.deps.cleanups {
		if err := s.serviceManager.RegisterResource(c.name, c); err != nil {
			return fmt.Errorf("failed to register resource %s: %w", c.name, err)
		}
	}
	return nil
}

// Start 启动所有服务，不阻塞
func (s *Server) Start() error {
	corelog.Infof(constants.MsgStartingServer)
	if err := s.serviceManager.StartAllServices(); err != nil {
		return fmt.Errorf("failed to start services: %w", err)
	}
	corelog.Infof(constants.MsgServerStarted)
	return nil
}

// Stop 停止服务并释放资源，可重复调用
func (s *Server) Stop() error {
	corelog.Infof(constants.MsgShuttingDownServer)
	err := s.serviceManager.Shutdown()
	corelog.Infof(constants.MsgServerShutdownCompleted)
	return err
}

// Run 启动并阻塞到收到 SIGINT/SIGTERM
func (s *Server) Run() error {
	return s.RunWithContext(context.Background())
}

// RunWithContext 启动并阻塞到 ctx 取消或收到关闭信号
func (s *Server) RunWithContext(ctx context.Context) error {
	corelog.Infof(constants.MsgStartingServer)
	return s.serviceManager.RunWithContext(ctx)
}

// Addr HTTP 实际监听地址，启动前为空
func (s *Server) Addr() string {
	return s.deps.HTTPService.Addr()
}

func (s *Server) Config() *Config {
	return s.config
}

func (s *Server) NodeID() string {
	return s.deps.NodeID
}

func (s *Server) MessageBroker() broker.MessageBroker {
	return s.deps.MessageBroker
}

func (s *Server) HealthManager() *health.HealthManager {
	return s.deps.HealthManager
}

func (s *Server) Registry() *subscription.Registry {
	return s.deps.Registry
}

func (s *Server) Rooms() *room.Directory {
	return s.deps.Rooms
}

func (s *Server) SessionManager() *session.Manager {
	return s.deps.SessionMgr
}

func (s *Server) HTTPService() *httpservice.HTTPService {
	return s.deps.HTTPService
}

// componentService 把组件的 Start/Stop 接入 ServiceManager
type componentService struct {
	components []Component
}

func (c *componentService) Name() string {
	return "Components"
}

func (c *componentService) Start(ctx context.Context) error {
	for _, comp := range c.components {
		if err := comp.Start(); err != nil {
			return NewComponentError(comp.Name(), err)
		}
	}
	return nil
}

func (c *componentService) Stop(ctx context.Context) error {
	var errs []error
	for i := len(c.components) - 1; i >= 0; i-- {
		if err := c.components[i].Stop(); err != nil {
			errs = append(errs, fmt.Errorf("component %s: %w", c.components[i].Name(), err))
		}
	}
	return errors.Join(errs...)
}
