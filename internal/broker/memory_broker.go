package broker

import (
	"context"
	"sync"
	"time"

	"dharana-gateway/internal/core/dispose"
	corelog "dharana-gateway/internal/core/log"
)

// MemoryBroker 进程内消息代理，保留消息只存在内存中
type MemoryBroker struct {
	*dispose.ServiceBase
	filter TopicFilter
	nodeID string

	mu          sync.RWMutex
	subscribers map[string]chan *Message
	retained    map[string]*Message
	closed      bool
}

func NewMemoryBroker(parentCtx context.Context, nodeID string, filter TopicFilter) *MemoryBroker {
	b := &MemoryBroker{
		ServiceBase: dispose.NewService("MemoryBroker", parentCtx),
		filter:      filter,
		nodeID:      nodeID,
		subscribers: make(map[string]chan *Message),
		retained:    make(map[string]*Message),
	}
	b.AddCleanHandler(b.shutdown)
	corelog.Infof("MemoryBroker initialized for node: %s", nodeID)
	return b
}

func (m *MemoryBroker) Publish(ctx context.Context, topic string, payload []byte, retain bool) error {
	msg := &Message{
		Topic:     topic,
		Payload:   copyPayload(payload),
		Timestamp: time.Now(),
		NodeID:    m.nodeID,
		Retained:  retain,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrBrokerClosed
	}

	if retain {
		if len(payload) == 0 {
			delete(m.retained, topic)
		} else {
			m.retained[topic] = msg
		}
	}

	if m.filter.IsSystem(topic) {
		return nil
	}
	ch, ok := m.subscribers[topic]
	if !ok {
		corelog.Debugf("MemoryBroker: no subscribers for topic %s, message dropped", topic)
		return nil
	}
	select {
	case ch <- msg:
	case <-ctx.Done():
		return ctx.Err()
	default:
		corelog.Warnf("MemoryBroker: subscriber channel full for topic %s, dropping message", topic)
	}
	return nil
}

func (m *MemoryBroker) Subscribe(ctx context.Context, topic string) (<-chan *Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrBrokerClosed
	}
	if _, exists := m.subscribers[topic]; exists {
		return nil, ErrAlreadySubscribed
	}
	ch := make(chan *Message, subscriberBufferSize)
	m.subscribers[topic] = ch
	corelog.Debugf("MemoryBroker: subscribed to topic %s", topic)
	return ch, nil
}

func (m *MemoryBroker) Unsubscribe(ctx context.Context, topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrBrokerClosed
	}
	ch, exists := m.subscribers[topic]
	if !exists {
		return ErrNotSubscribed
	}
	close(ch)
	delete(m.subscribers, topic)
	corelog.Debugf("MemoryBroker: unsubscribed from topic %s", topic)
	return nil
}

func (m *MemoryBroker) Retained(ctx context.Context, topic string) (*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrBrokerClosed
	}
	if m.filter.IsSystem(topic) {
		return nil, nil
	}
	return m.retained[topic], nil
}

func (m *MemoryBroker) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrBrokerClosed
	}
	return nil
}

// SubscriberCount 当前订阅的主题数
func (m *MemoryBroker) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscribers)
}

func (m *MemoryBroker) shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	for topic, ch := range m.subscribers {
		close(ch)
		delete(m.subscribers, topic)
	}
	corelog.Infof("MemoryBroker closed for node: %s", m.nodeID)
	return nil
}

func (m *MemoryBroker) Close() error {
	return m.ServiceBase.Close()
}
