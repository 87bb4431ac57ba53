package broker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"dharana-gateway/internal/core/dispose"
	coreerrors "dharana-gateway/internal/core/errors"
	corelog "dharana-gateway/internal/core/log"

	mqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/mochi-mqtt/server/v2/packets"
)

// MQTTBrokerConfig 内嵌 MQTT 代理配置
type MQTTBrokerConfig struct {
	// ListenAddress MQTT TCP 监听地址，为空时只在进程内使用
	ListenAddress string
	// Logger mochi 使用的 slog 日志，为空时使用 mochi 默认输出
	Logger *slog.Logger
}

// MQTTBroker 内嵌 mochi MQTT 代理
//
// 网关通过内联客户端发布，OnPublished 钩子把所有发布（包括外部 MQTT 客户端的发布）
// 按主题精确匹配分发到订阅流。保留消息由 mochi 的主题索引保存。
type MQTTBroker struct {
	*dispose.ServiceBase
	server *mqtt.Server
	nodeID string
	filter TopicFilter

	mu          sync.RWMutex
	subscribers map[string]chan *Message
	closed      atomic.Bool
}

func NewMQTTBroker(parentCtx context.Context, config *MQTTBrokerConfig, nodeID string, filter TopicFilter) (*MQTTBroker, error) {
	if config == nil {
		config = &MQTTBrokerConfig{}
	}

	server := mqtt.New(&mqtt.Options{
		InlineClient: true,
		Logger:       config.Logger,
	})
	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		return nil, coreerrors.Wrap(err, coreerrors.CodeInternal, "failed to add mqtt auth hook")
	}

	b := &MQTTBroker{
		ServiceBase: dispose.NewService("MQTTBroker", parentCtx),
		server:      server,
		nodeID:      nodeID,
		filter:      filter,
		subscribers: make(map[string]chan *Message),
	}
	if err := server.AddHook(&publishBridge{broker: b}, nil); err != nil {
		return nil, coreerrors.Wrap(err, coreerrors.CodeInternal, "failed to add mqtt publish hook")
	}

	if config.ListenAddress != "" {
		tcp := listeners.NewTCP(listeners.Config{ID: "dharana-tcp", Address: config.ListenAddress})
		if err := server.AddListener(tcp); err != nil {
			return nil, coreerrors.Wrapf(err, coreerrors.CodeConfigError, "failed to listen for mqtt on %s", config.ListenAddress)
		}
	}
	if err := server.Serve(); err != nil {
		return nil, coreerrors.Wrap(err, coreerrors.CodeInternal, "failed to start mqtt broker")
	}
	b.AddCleanHandler(b.shutdown)

	corelog.Infof("MQTTBroker initialized for node: %s (listen: %q)", nodeID, config.ListenAddress)
	return b, nil
}

// publishBridge 把 mochi 的发布事件转给 MQTTBroker
type publishBridge struct {
	mqtt.HookBase
	broker *MQTTBroker
}

func (h *publishBridge) ID() string {
	return "dharana-publish-bridge"
}

func (h *publishBridge) Provides(b byte) bool {
	return b == mqtt.OnPublished
}

func (h *publishBridge) OnPublished(cl *mqtt.Client, pk packets.Packet) {
	h.broker.dispatch(pk.TopicName, pk.Payload, pk.FixedHeader.Retain)
}

func (b *MQTTBroker) dispatch(topic string, payload []byte, retained bool) {
	if b.filter.IsSystem(topic) {
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	ch, ok := b.subscribers[topic]
	if !ok {
		return
	}
	msg := &Message{
		Topic:     topic,
		Payload:   copyPayload(payload),
		Timestamp: time.Now(),
		NodeID:    b.nodeID,
		Retained:  retained,
	}
	select {
	case ch <- msg:
	default:
		corelog.Warnf("MQTTBroker: subscriber channel full for topic %s, dropping message", topic)
	}
}

func (b *MQTTBroker) Publish(ctx context.Context, topic string, payload []byte, retain bool) error {
	if b.closed.Load() {
		return ErrBrokerClosed
	}
	if err := b.server.Publish(topic, payload, retain, 0); err != nil {
		return coreerrors.Wrapf(err, coreerrors.CodeUnavailable, "failed to publish to %s", topic)
	}
	return nil
}

func (b *MQTTBroker) Subscribe(ctx context.Context, topic string) (<-chan *Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed.Load() {
		return nil, ErrBrokerClosed
	}
	if _, exists := b.subscribers[topic]; exists {
		return nil, ErrAlreadySubscribed
	}
	ch := make(chan *Message, subscriberBufferSize)
	b.subscribers[topic] = ch
	corelog.Debugf("MQTTBroker: subscribed to topic %s", topic)
	return ch, nil
}

func (b *MQTTBroker) Unsubscribe(ctx context.Context, topic string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed.Load() {
		return ErrBrokerClosed
	}
	ch, exists := b.subscribers[topic]
	if !exists {
		return ErrNotSubscribed
	}
	close(ch)
	delete(b.subscribers, topic)
	corelog.Debugf("MQTTBroker: unsubscribed from topic %s", topic)
	return nil
}

func (b *MQTTBroker) Retained(ctx context.Context, topic string) (*Message, error) {
	if b.closed.Load() {
		return nil, ErrBrokerClosed
	}
	if b.filter.IsSystem(topic) {
		return nil, nil
	}
	for _, pk := range b.server.Topics.Messages(topic) {
		if pk.TopicName != topic {
			continue
		}
		return &Message{
			Topic:     topic,
			Payload:   copyPayload(pk.Payload),
			Timestamp: time.Unix(pk.Created, 0),
			NodeID:    b.nodeID,
			Retained:  true,
		}, nil
	}
	return nil, nil
}

func (b *MQTTBroker) Ping(ctx context.Context) error {
	if b.closed.Load() {
		return ErrBrokerClosed
	}
	return nil
}

func (b *MQTTBroker) shutdown() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}

	b.mu.Lock()
	for topic, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, topic)
	}
	b.mu.Unlock()

	if err := b.server.Close(); err != nil {
		corelog.Warnf("MQTTBroker: failed to close mqtt server: %v", err)
	}
	corelog.Infof("MQTTBroker closed for node: %s", b.nodeID)
	return nil
}

func (b *MQTTBroker) Close() error {
	return b.ServiceBase.Close()
}
