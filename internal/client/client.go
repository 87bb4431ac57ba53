// Package client 网关客户端的断线恢复层
//
// Client 在 Disconnected → Connecting → Connected 之间循环，断线后按固定间隔无限重连。
// 未连接期间的发布与日志按顺序排队，连上后先重放本地订阅集合，再依次发送消息队列和日志队列。
package client

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"dharana-gateway/internal/core/dispose"
	corelog "dharana-gateway/internal/core/log"
	"dharana-gateway/internal/packet"

	"github.com/gorilla/websocket"
)

// ErrClientClosed 客户端已关闭
var ErrClientClosed = errors.New("client closed")

// State 连接状态
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Handler 频道消息回调，在读取 goroutine 中执行
type Handler func(channel, message string)

// LogEntry 远程日志记录
type LogEntry struct {
	Message    string
	Timestamp  string
	StackTrace string
}

type controlRequest struct {
	Command    string  `json:"command"`
	Channel    string  `json:"channel,omitempty"`
	Message    *string `json:"message,omitempty"`
	Timestamp  string  `json:"timestamp,omitempty"`
	StackTrace *string `json:"stackTrace,omitempty"`
}

type delivery struct {
	Channel string          `json:"channel"`
	Message json.RawMessage `json:"message"`
}

// Client 带断线恢复的网关客户端
type Client struct {
	*dispose.ServiceBase

	config *ClientConfig
	dialer Dialer

	mu    sync.Mutex
	state State
	conn  Conn
	// changed 状态或队列变化时关闭并替换
	changed chan struct{}

	// pending 本地订阅集合，重连后全部重放，只由 Unsubscribe 移除
	pending    []string
	pendingSet map[string]struct{}
	// requested 当前连接上已发送过的订阅，每次连接重置
	requested map[string]struct{}
	handlers  map[string]Handler

	messageQueue [][]byte
	logQueue     [][]byte

	startOnce sync.Once
	started   bool
	loopDone  chan struct{}
}

// NewClient 创建客户端，Start 之后开始连接
func NewClient(ctx context.Context, config *ClientConfig, dialer Dialer) *Client {
	if config == nil {
		config = DefaultClientConfig()
	}
	config.applyDefaults()
	if dialer == nil {
		dialer = NewWebSocketDialer()
	}

	c := &Client{
		ServiceBase: dispose.NewService("Client", ctx),
		config:      config,
		dialer:      dialer,
		changed:     make(chan struct{}),
		pendingSet:  make(map[string]struct{}),
		requested:   make(map[string]struct{}),
		handlers:    make(map[string]Handler),
		loopDone:    make(chan struct{}),
	}
	c.AddCleanHandler(c.shutdown)
	return c
}

// Start 启动连接循环，重复调用无效
func (c *Client) Start() {
	c.startOnce.Do(func() {
		c.mu.Lock()
		c.started = true
		c.mu.Unlock()
		go c.run()
	})
}

// State 当前连接状态
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Config 客户端配置
func (c *Client) Config() *ClientConfig {
	return c.config
}

// Subscribe 订阅频道并设置消息回调
// 订阅进入本地集合，未连接时等连上后发送；同一连接上不重复发送
func (c *Client) Subscribe(channel string, handler Handler) error {
	if channel == "" {
		return errors.New("channel is required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.IsClosed() {
		return ErrClientClosed
	}

	if handler != nil {
		c.handlers[channel] = handler
	}
	if _, ok := c.pendingSet[channel]; !ok {
		c.pendingSet[channel] = struct{}{}
		c.pending = append(c.pending, channel)
	}
	if c.state == StateConnected {
		c.requestLocked(channel)
	}
	return nil
}

// Unsubscribe 取消订阅并移除回调
func (c *Client) Unsubscribe(channel string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.IsClosed() {
		return ErrClientClosed
	}

	delete(c.handlers, channel)
	if _, ok := c.pendingSet[channel]; ok {
		delete(c.pendingSet, channel)
		for i, t := range c.pending {
			if t == channel {
				c.pending = append(c.pending[:i], c.pending[i+1:]...)
				break
			}
		}
	}
	if _, ok := c.requested[channel]; ok {
		delete(c.requested, channel)
		if c.state == StateConnected {
			_ = c.writeLocked(buildRequest(controlRequest{Command: packet.CommandUnsubscribe, Channel: channel}))
		}
	}
	return nil
}

// Publish 发布消息，未连接或发送失败时进入消息队列
func (c *Client) Publish(channel, message string) error {
	if channel == "" {
		return errors.New("channel is required")
	}
	frame := buildRequest(controlRequest{Command: packet.CommandPublish, Channel: channel, Message: &message})
	return c.sendOrQueue(frame, &c.messageQueue)
}

// Log 发送一条 debug_log，未连接或发送失败时进入日志队列
func (c *Client) Log(topic string, entry LogEntry) error {
	req := controlRequest{
		Command:   packet.CommandDebugLog,
		Channel:   topic,
		Message:   &entry.Message,
		Timestamp: entry.Timestamp,
	}
	if entry.StackTrace != "" {
		req.StackTrace = &entry.StackTrace
	}
	return c.sendOrQueue(buildRequest(req), &c.logQueue)
}

// QueueLengths 待发送的消息数和日志数
func (c *Client) QueueLengths() (messages, logs int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messageQueue), len(c.logQueue)
}

// Flush 等待连接建立且两个队列清空
func (c *Client) Flush(ctx context.Context) error {
	for {
		c.mu.Lock()
		done := c.state == StateConnected && len(c.messageQueue) == 0 && len(c.logQueue) == 0
		changed := c.changed
		c.mu.Unlock()

		if done {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.Ctx().Done():
			return ErrClientClosed
		case <-changed:
		}
	}
}

func (c *Client) sendOrQueue(frame []byte, queue *[][]byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.IsClosed() {
		return ErrClientClosed
	}

	if c.state == StateConnected {
		if err := c.writeLocked(frame); err == nil {
			return nil
		}
	}
	*queue = append(*queue, frame)
	c.notifyLocked()
	return nil
}

// requestLocked 当前连接上未发送过时发送 subscribe
func (c *Client) requestLocked(channel string) {
	if _, ok := c.requested[channel]; ok {
		return
	}
	if err := c.writeLocked(buildRequest(controlRequest{Command: packet.CommandSubscribe, Channel: channel})); err == nil {
		c.requested[channel] = struct{}{}
	}
}

// writeLocked 写一帧，失败时关闭连接并转为 Disconnected
// 持有 c.mu 时不能写日志：RemoteLogHook 会回到 Log 再次加锁
func (c *Client) writeLocked(frame []byte) error {
	if c.conn == nil {
		return errors.New("not connected")
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		_ = c.conn.Close()
		c.conn = nil
		c.setStateLocked(StateDisconnected)
		return err
	}
	return nil
}

func (c *Client) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.state = s
	c.notifyLocked()
}

func (c *Client) notifyLocked() {
	close(c.changed)
	c.changed = make(chan struct{})
}

func (c *Client) run() {
	ctx := c.Ctx()
	url := c.config.Server.URL
	defer func() {
		// 循环可能在 shutdown 之后才走到 Connecting，退出时统一复位
		c.mu.Lock()
		c.setStateLocked(StateDisconnected)
		c.mu.Unlock()
		close(c.loopDone)
	}()

	for {
		c.mu.Lock()
		if ctx.Err() != nil {
			c.mu.Unlock()
			return
		}
		c.setStateLocked(StateConnecting)
		c.mu.Unlock()

		conn, err := c.dialer.Dial(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			corelog.Warnf("Client: connect to %s failed: %v", url, err)
		} else {
			corelog.Infof("Client: connected to %s", url)
			c.onOpen(conn)
			err = c.readLoop(conn)
			c.onClose(conn)
			if ctx.Err() != nil {
				return
			}
			corelog.Warnf("Client: disconnected from %s: %v", url, err)
		}

		c.mu.Lock()
		c.setStateLocked(StateDisconnected)
		c.mu.Unlock()

		corelog.Infof("Client: reconnecting in %s", c.config.ReconnectInterval)
		timer := time.NewTimer(c.config.ReconnectInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// onOpen 重放订阅，然后按顺序发送消息队列和日志队列
func (c *Client) onOpen(conn Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.IsClosed() {
		_ = conn.Close()
		return
	}
	c.conn = conn
	c.requested = make(map[string]struct{})
	c.setStateLocked(StateConnected)

	for _, channel := range c.pending {
		c.requestLocked(channel)
		if c.conn == nil {
			return
		}
	}
	c.messageQueue = c.drainLocked(c.messageQueue)
	if c.conn == nil {
		return
	}
	c.logQueue = c.drainLocked(c.logQueue)
}

// drainLocked 依次发送，返回未发出的部分
func (c *Client) drainLocked(queue [][]byte) [][]byte {
	for i, frame := range queue {
		if err := c.writeLocked(frame); err != nil {
			return queue[i:]
		}
	}
	if len(queue) > 0 {
		c.notifyLocked()
	}
	return nil
}

func (c *Client) onClose(conn Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == conn {
		_ = conn.Close()
		c.conn = nil
	}
	c.setStateLocked(StateDisconnected)
}

func (c *Client) readLoop(conn Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		c.dispatch(data)
	}
}

// dispatch 把 {channel, message} 交给对应回调
func (c *Client) dispatch(data []byte) {
	var d delivery
	if err := json.Unmarshal(data, &d); err != nil || d.Channel == "" {
		corelog.Debugf("Client: ignoring non-delivery frame: %s", corelog.Payload(data))
		return
	}

	c.mu.Lock()
	handler := c.handlers[d.Channel]
	c.mu.Unlock()

	if handler == nil {
		corelog.Debugf("Client: no handler for channel %s", d.Channel)
		return
	}
	handler(d.Channel, messageText(d.Message))
}

// messageText JSON 字符串取内容，其他值保留原文
func messageText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func buildRequest(req controlRequest) []byte {
	data, err := json.Marshal(req)
	if err != nil {
		// 只含字符串字段，不会失败
		panic(err)
	}
	return data
}

func (c *Client) shutdown() error {
	c.mu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.setStateLocked(StateDisconnected)
	started := c.started
	c.mu.Unlock()

	if started {
		<-c.loopDone
	}
	return nil
}
