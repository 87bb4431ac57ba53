package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"dharana-gateway/internal/core/dispose"
	coreerrors "dharana-gateway/internal/core/errors"
	corelog "dharana-gateway/internal/core/log"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// RedisBrokerConfig Redis 代理配置
type RedisBrokerConfig struct {
	Addrs       []string
	Password    string
	DB          int
	ClusterMode bool
	PoolSize    int
	// KeyPrefix 频道和保留消息键的前缀
	KeyPrefix string
}

// RedisBroker 基于 Redis Pub/Sub 的消息代理
// 保留消息以 <prefix>retained:<topic> 键保存，订阅消息经 <prefix><topic> 频道传递
type RedisBroker struct {
	*dispose.ServiceBase
	client redis.UniversalClient
	prefix string
	nodeID string
	filter TopicFilter

	mu          sync.RWMutex
	pubsub      *redis.PubSub
	subscribers map[string]chan *Message
	loopOnce    sync.Once
	closed      atomic.Bool

	retainedGroup singleflight.Group
}

func NewRedisBroker(parentCtx context.Context, config *RedisBrokerConfig, nodeID string, filter TopicFilter) (*RedisBroker, error) {
	if config == nil {
		return nil, coreerrors.New(coreerrors.CodeConfigError, "redis broker config is required")
	}
	if config.PoolSize <= 0 {
		config.PoolSize = 100
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "dharana:"
	}

	var client redis.UniversalClient
	if config.ClusterMode {
		client = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:    config.Addrs,
			Password: config.Password,
			PoolSize: config.PoolSize,
		})
	} else {
		addr := "localhost:6379"
		if len(config.Addrs) > 0 {
			addr = config.Addrs[0]
		}
		client = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.Password,
			DB:       config.DB,
			PoolSize: config.PoolSize,
		})
	}

	pingCtx, cancel := context.WithTimeout(parentCtx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, coreerrors.Wrap(err, coreerrors.CodeUnavailable, "failed to connect to Redis")
	}

	b := &RedisBroker{
		ServiceBase: dispose.NewService("RedisBroker", parentCtx),
		client:      client,
		prefix:      config.KeyPrefix,
		nodeID:      nodeID,
		filter:      filter,
		subscribers: make(map[string]chan *Message),
	}
	b.AddCleanHandler(b.shutdown)

	corelog.Infof("RedisBroker initialized for node: %s (cluster_mode: %v)", nodeID, config.ClusterMode)
	return b, nil
}

func (r *RedisBroker) channel(topic string) string {
	return r.prefix + topic
}

func (r *RedisBroker) retainedKey(topic string) string {
	return r.prefix + "retained:" + topic
}

func (r *RedisBroker) Publish(ctx context.Context, topic string, payload []byte, retain bool) error {
	if r.closed.Load() {
		return ErrBrokerClosed
	}

	data, err := json.Marshal(&Message{
		Topic:     topic,
		Payload:   payload,
		Timestamp: time.Now(),
		NodeID:    r.nodeID,
		Retained:  retain,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if retain {
		key := r.retainedKey(topic)
		if len(payload) == 0 {
			err = r.client.Del(ctx, key).Err()
		} else {
			err = r.client.Set(ctx, key, data, 0).Err()
		}
		if err != nil {
			return coreerrors.Wrapf(err, coreerrors.CodeUnavailable, "failed to store retained message for %s", topic)
		}
	}

	if err := r.client.Publish(ctx, r.channel(topic), data).Err(); err != nil {
		return coreerrors.Wrapf(err, coreerrors.CodeUnavailable, "failed to publish to %s", topic)
	}
	corelog.Debugf("RedisBroker: published message to topic %s", topic)
	return nil
}

func (r *RedisBroker) Subscribe(ctx context.Context, topic string) (<-chan *Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed.Load() {
		return nil, ErrBrokerClosed
	}
	if _, exists := r.subscribers[topic]; exists {
		return nil, ErrAlreadySubscribed
	}

	if r.pubsub == nil {
		r.pubsub = r.client.Subscribe(r.Ctx())
	}
	if err := r.pubsub.Subscribe(ctx, r.channel(topic)); err != nil {
		return nil, coreerrors.Wrapf(err, coreerrors.CodeUnavailable, "failed to subscribe to %s", topic)
	}

	ch := make(chan *Message, subscriberBufferSize)
	r.subscribers[topic] = ch
	r.loopOnce.Do(func() { go r.receiveLoop(r.pubsub) })

	corelog.Debugf("RedisBroker: subscribed to topic %s (total topics: %d)", topic, len(r.subscribers))
	return ch, nil
}

func (r *RedisBroker) receiveLoop(pubsub *redis.PubSub) {
	corelog.Debugf("RedisBroker: receive loop started")
	for {
		raw, err := pubsub.ReceiveMessage(r.Ctx())
		if err != nil {
			if r.closed.Load() || r.Ctx().Err() != nil {
				corelog.Debugf("RedisBroker: receive loop stopped")
				return
			}
			corelog.Errorf("RedisBroker: failed to receive message: %v", err)
			time.Sleep(100 * time.Millisecond)
			continue
		}

		var msg Message
		if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
			corelog.Errorf("RedisBroker: failed to unmarshal message: %v", err)
			continue
		}
		if r.filter.IsSystem(msg.Topic) {
			continue
		}

		r.mu.RLock()
		ch, exists := r.subscribers[msg.Topic]
		if exists {
			select {
			case ch <- &msg:
			default:
				corelog.Warnf("RedisBroker: subscriber channel full for topic %s, dropping message", msg.Topic)
			}
		}
		r.mu.RUnlock()
	}
}

func (r *RedisBroker) Unsubscribe(ctx context.Context, topic string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed.Load() {
		return ErrBrokerClosed
	}
	ch, exists := r.subscribers[topic]
	if !exists {
		return ErrNotSubscribed
	}
	if err := r.pubsub.Unsubscribe(ctx, r.channel(topic)); err != nil {
		corelog.Warnf("RedisBroker: failed to unsubscribe from Redis: %v", err)
	}
	close(ch)
	delete(r.subscribers, topic)
	corelog.Debugf("RedisBroker: unsubscribed from topic %s", topic)
	return nil
}

// Retained 并发查询同一主题时只访问一次 Redis
func (r *RedisBroker) Retained(ctx context.Context, topic string) (*Message, error) {
	if r.closed.Load() {
		return nil, ErrBrokerClosed
	}
	if r.filter.IsSystem(topic) {
		return nil, nil
	}

	key := r.retainedKey(topic)
	v, err, _ := r.retainedGroup.Do(key, func() (interface{}, error) {
		data, err := r.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return (*Message)(nil), nil
		}
		if err != nil {
			return nil, coreerrors.Wrapf(err, coreerrors.CodeUnavailable, "failed to load retained message for %s", topic)
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal retained message: %w", err)
		}
		return &msg, nil
	})
	if err != nil {
		return nil, err
	}
	msg, _ := v.(*Message)
	if msg == nil {
		return nil, nil
	}
	// singleflight 的结果在调用方之间共享
	clone := *msg
	clone.Payload = copyPayload(msg.Payload)
	return &clone, nil
}

func (r *RedisBroker) Ping(ctx context.Context) error {
	if r.closed.Load() {
		return ErrBrokerClosed
	}
	return r.client.Ping(ctx).Err()
}

func (r *RedisBroker) shutdown() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}

	r.mu.Lock()
	if r.pubsub != nil {
		if err := r.pubsub.Close(); err != nil {
			corelog.Warnf("RedisBroker: failed to close pubsub: %v", err)
		}
	}
	for topic, ch := range r.subscribers {
		close(ch)
		delete(r.subscribers, topic)
	}
	r.mu.Unlock()

	if err := r.client.Close(); err != nil {
		corelog.Warnf("RedisBroker: failed to close Redis client: %v", err)
	}
	corelog.Infof("RedisBroker closed for node: %s", r.nodeID)
	return nil
}

func (r *RedisBroker) Close() error {
	return r.ServiceBase.Close()
}
