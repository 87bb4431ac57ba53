package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"dharana-gateway/internal/conn"
	"dharana-gateway/internal/constants"
	"dharana-gateway/internal/core/dispose"
	coreerrors "dharana-gateway/internal/core/errors"
	"dharana-gateway/internal/core/idgen"
	corelog "dharana-gateway/internal/core/log"
	"dharana-gateway/internal/core/metrics"
	"dharana-gateway/internal/room"
	"dharana-gateway/internal/subscription"
	"dharana-gateway/internal/utils"

	"github.com/gorilla/websocket"
)

// Config 连接参数
type Config struct {
	SendQueueSize int
	WriteWait     time.Duration
	// MaxFramesPerSecond 每连接入站限速，<= 0 不限速
	MaxFramesPerSecond int
}

// DefaultConfig 默认连接参数
func DefaultConfig() *Config {
	return &Config{
		SendQueueSize: constants.DefaultSendQueueSize,
		WriteWait:     constants.DefaultWriteWait,
	}
}

// FrameHandler 处理一帧入站数据
// 返回的错误只有 CodeConnectionError 会关闭连接，其余记录日志后继续读取
type FrameHandler interface {
	HandleFrame(ctx context.Context, c *Connection, data []byte) error
}

// FrameHandlerFunc 函数适配器
type FrameHandlerFunc func(ctx context.Context, c *Connection, data []byte) error

func (f FrameHandlerFunc) HandleFrame(ctx context.Context, c *Connection, data []byte) error {
	return f(ctx, c, data)
}

// Manager 连接管理器
type Manager struct {
	*dispose.ServiceBase

	config   *Config
	ids      idgen.IDGenerator
	registry *subscription.Registry
	rooms    *room.Directory
	handler  FrameHandler

	mu    sync.RWMutex
	conns map[string]*Connection
	pumps sync.WaitGroup
}

// NewManager 创建连接管理器
func NewManager(ctx context.Context, config *Config, registry *subscription.Registry, rooms *room.Directory, handler FrameHandler) *Manager {
	if config == nil {
		config = DefaultConfig()
	}
	if config.SendQueueSize <= 0 {
		config.SendQueueSize = constants.DefaultSendQueueSize
	}
	m := &Manager{
		ServiceBase: dispose.NewService("SessionManager", ctx),
		config:      config,
		ids:         idgen.NewConnectionIDGenerator(),
		registry:    registry,
		rooms:       rooms,
		handler:     handler,
		conns:       make(map[string]*Connection),
	}
	m.AddCleanHandler(m.shutdown)
	return m
}

// Accept 注册新连接并启动写泵
func (m *Manager) Accept(t Transport) (*Connection, error) {
	if m.IsClosed() {
		return nil, coreerrors.ErrServiceClosed
	}
	id, err := m.ids.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate connection ID: %w", err)
	}

	c := newConnection(id, t, m.config)
	m.mu.Lock()
	m.conns[id] = c
	n := len(m.conns)
	m.mu.Unlock()
	metrics.SetGauge(metrics.GatewayConnections, float64(n), nil)

	m.pumps.Add(1)
	utils.SafeGo("write-pump-"+id, func() {
		defer m.pumps.Done()
		c.writePump(func(err error) {
			c.logger.Warnf("SessionManager: write failed: %v", err)
			m.Teardown(c, err)
		})
	})

	c.logger.Infof("SessionManager: connection accepted from %s, %d active", c.remoteAddr, n)
	return c, nil
}

// Serve 读循环，按顺序把帧交给分发器；连接关闭后执行 Teardown 并返回
func (m *Manager) Serve(c *Connection) {
	var reason error
	defer func() {
		m.Teardown(c, reason)
		// 写泵先触发 Teardown 时，读循环可能随后又登记了订阅或入房
		m.release(c)
	}()

	for {
		messageType, data, err := c.transport.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				reason = err
			}
			return
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}

		metrics.IncrementCounter(metrics.GatewayFramesTotal, nil)
		if !c.Allow() {
			metrics.Dropped("rate_limited")
			c.logger.Warnf("SessionManager: %v, dropping frame", coreerrors.ErrRateLimited)
			continue
		}

		if err := m.handler.HandleFrame(m.Ctx(), c, data); err != nil {
			m.logFrameError(c, err, data)
			if !coreerrors.KeepsConnection(err) {
				reason = err
				return
			}
		}
	}
}

func (m *Manager) logFrameError(c *Connection, err error, data []byte) {
	log := c.logger.WithError(err)
	switch coreerrors.GetCode(err) {
	case coreerrors.CodeUnresolvedTarget:
		log.Debugf("SessionManager: target not found, frame dropped")
	case coreerrors.CodeUnavailable, coreerrors.CodeInternal:
		metrics.IncrementCounter(metrics.GatewayPublishErrorsTotal, nil)
		log.Errorf("SessionManager: frame failed")
	default:
		metrics.Dropped(string(coreerrors.GetCode(err)))
		log.Warnf("SessionManager: frame dropped: %s", corelog.Payload(data))
	}
}

// Teardown 释放连接的全部状态，只执行一次
// 顺序：订阅、房间与对端绑定、连接表、socket。
func (m *Manager) Teardown(c *Connection, reason error) {
	c.teardownOnce.Do(func() {
		topics := m.release(c)

		m.mu.Lock()
		delete(m.conns, c.id)
		n := len(m.conns)
		m.mu.Unlock()
		metrics.SetGauge(metrics.GatewayConnections, float64(n), nil)

		if err := c.close(); err != nil {
			c.logger.Debugf("SessionManager: close transport: %v", err)
		}
		if reason != nil {
			c.logger.Infof("SessionManager: connection closed (%v), released %d topics, %d active", reason, len(topics), n)
		} else {
			c.logger.Infof("SessionManager: connection closed, released %d topics, %d active", len(topics), n)
		}
	})
}

func (m *Manager) release(c *Connection) []string {
	topics := m.registry.RemoveAll(context.Background(), c)
	m.rooms.Disconnect(c)
	return topics
}

// Get 按 ID 查找连接
func (m *Manager) Get(connID string) (*Connection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.conns[connID]
	return c, ok
}

// ActiveConnections 当前连接数
func (m *Manager) ActiveConnections() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}

// ActiveRooms 当前房间数
func (m *Manager) ActiveRooms() int {
	return m.rooms.ActiveRooms()
}

// List 连接快照，按建立时间排序
func (m *Manager) List() []*conn.Info {
	m.mu.RLock()
	conns := make([]*Connection, 0, len(m.conns))
	for _, c := range m.conns {
		conns = append(conns, c)
	}
	m.mu.RUnlock()

	infos := make([]*conn.Info, 0, len(conns))
	for _, c := range conns {
		roomID, _ := m.rooms.RoomOf(c.id)
		infos = append(infos, &conn.Info{
			ConnID:      c.id,
			PeerID:      m.rooms.PeerOf(c.id),
			RoomID:      roomID,
			RemoteAddr:  c.remoteAddr,
			State:       c.State().String(),
			Topics:      len(m.registry.Topics(c.id)),
			ConnectedAt: c.connectedAt,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ConnectedAt.Before(infos[j].ConnectedAt) })
	return infos
}

func (m *Manager) shutdown() error {
	m.mu.RLock()
	conns := make([]*Connection, 0, len(m.conns))
	for _, c := range m.conns {
		conns = append(conns, c)
	}
	m.mu.RUnlock()

	for _, c := range conns {
		m.Teardown(c, coreerrors.ErrServiceClosed)
	}
	m.pumps.Wait()
	corelog.Infof("SessionManager: closed %d connections", len(conns))
	return nil
}
