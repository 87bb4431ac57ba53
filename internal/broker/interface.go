package broker

import (
	"context"
	"strings"
	"time"

	coreerrors "dharana-gateway/internal/core/errors"
)

// MessageBroker 消息代理接口
//
// 每个主题在同一个代理实例上至多一个订阅流，由订阅注册表负责引用计数。
// 系统前缀的主题不会出现在订阅流中。
type MessageBroker interface {
	// Publish 发布消息，retain 为 true 时替换该主题的保留消息，空负载清除保留消息
	Publish(ctx context.Context, topic string, payload []byte, retain bool) error

	// Subscribe 订阅主题，返回该主题的消息流
	Subscribe(ctx context.Context, topic string) (<-chan *Message, error)

	// Unsubscribe 取消订阅并关闭消息流
	Unsubscribe(ctx context.Context, topic string) error

	// Retained 获取主题当前的保留消息，没有时返回 nil
	Retained(ctx context.Context, topic string) (*Message, error)

	Ping(ctx context.Context) error
	Close() error
}

// Message 代理消息
type Message struct {
	Topic     string    `json:"topic"`
	Payload   []byte    `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
	NodeID    string    `json:"node_id,omitempty"`
	Retained  bool      `json:"retained,omitempty"`
}

// 订阅流缓冲大小，满时丢弃并告警
const subscriberBufferSize = 256

var (
	ErrBrokerClosed      = coreerrors.New(coreerrors.CodeUnavailable, "broker is closed")
	ErrAlreadySubscribed = coreerrors.New(coreerrors.CodeAlreadySubscribed, "topic already subscribed")
	ErrNotSubscribed     = coreerrors.New(coreerrors.CodeNotSubscribed, "topic not subscribed")
)

// TopicFilter 系统主题过滤
type TopicFilter struct {
	SystemPrefix string
}

// IsSystem 是否为系统主题
func (f TopicFilter) IsSystem(topic string) bool {
	return f.SystemPrefix != "" && strings.HasPrefix(topic, f.SystemPrefix)
}

func copyPayload(p []byte) []byte {
	if p == nil {
		return nil
	}
	out := make([]byte, len(p))
	copy(out, p)
	return out
}
