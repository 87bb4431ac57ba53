// Package session WebSocket 连接生命周期
//
// 每个连接一个读循环和一个写泵：读循环按顺序把帧交给分发器，
// 写泵是唯一写 socket 的协程。连接关闭时 Teardown 只执行一次。
package session

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"dharana-gateway/internal/conn"
	corelog "dharana-gateway/internal/core/log"
	"dharana-gateway/internal/core/metrics"
	"dharana-gateway/internal/utils"

	"github.com/gorilla/websocket"
)

// Transport 连接底层的消息收发，*websocket.Conn 满足该接口
type Transport interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
	RemoteAddr() net.Addr
}

// Connection 网关连接
type Connection struct {
	id          string
	transport   Transport
	remoteAddr  string
	connectedAt time.Time

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	state     atomic.Uint32

	teardownOnce sync.Once

	limiter   *utils.FrameLimiter
	writeWait time.Duration
	logger    corelog.Logger
}

var _ conn.Sender = (*Connection)(nil)

func newConnection(id string, t Transport, cfg *Config) *Connection {
	c := &Connection{
		id:          id,
		transport:   t,
		connectedAt: time.Now(),
		send:        make(chan []byte, cfg.SendQueueSize),
		done:        make(chan struct{}),
		limiter:     utils.NewFrameLimiter(cfg.MaxFramesPerSecond),
		writeWait:   cfg.WriteWait,
		logger:      corelog.ForConn(id),
	}
	if addr := t.RemoteAddr(); addr != nil {
		c.remoteAddr = addr.String()
	}
	c.state.Store(uint32(conn.StateOpen))
	return c
}

// ID 服务端分配的连接 ID
func (c *Connection) ID() string {
	return c.id
}

// RemoteAddr 对端地址
func (c *Connection) RemoteAddr() string {
	return c.remoteAddr
}

// ConnectedAt 建立时间
func (c *Connection) ConnectedAt() time.Time {
	return c.connectedAt
}

// State 当前状态
func (c *Connection) State() conn.State {
	return conn.State(c.state.Load())
}

// Logger 带连接 ID 的日志
func (c *Connection) Logger() corelog.Logger {
	return c.logger
}

// Allow 入站限速
func (c *Connection) Allow() bool {
	return c.limiter.Allow()
}

// Send 非阻塞入队
// 连接已关闭或发送队列满时丢弃并返回 false
func (c *Connection) Send(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	case <-c.done:
		return false
	default:
		metrics.Dropped("send_queue_full")
		c.logger.Warnf("Connection: send queue full, dropping %d bytes", len(frame))
		return false
	}
}

// Done 连接关闭后可读
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// writePump 串行写 socket，连接关闭或写失败时退出
func (c *Connection) writePump(onError func(error)) {
	for {
		select {
		case frame := <-c.send:
			if c.writeWait > 0 {
				_ = c.transport.SetWriteDeadline(time.Now().Add(c.writeWait))
			}
			if err := c.transport.WriteMessage(websocket.TextMessage, frame); err != nil {
				onError(err)
				return
			}
		case <-c.done:
			return
		}
	}
}

// close 关闭发送队列与 socket，可重复调用
func (c *Connection) close() error {
	var err error
	c.closeOnce.Do(func() {
		c.state.Store(uint32(conn.StateClosing))
		close(c.done)
		err = c.transport.Close()
		c.state.Store(uint32(conn.StateClosed))
	})
	return err
}
