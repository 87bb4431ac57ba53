// Package subscription 连接订阅表
//
// 多个连接订阅同一主题时，代理上只保留一个订阅流，由注册表做引用计数。
// 每个活跃主题有一个泵协程，把代理消息扇出给当前订阅者。
package subscription

import (
	"context"
	"errors"
	"sort"
	"sync"

	"dharana-gateway/internal/broker"
	"dharana-gateway/internal/conn"
	"dharana-gateway/internal/core/dispose"
	coreerrors "dharana-gateway/internal/core/errors"
	corelog "dharana-gateway/internal/core/log"
	"dharana-gateway/internal/core/metrics"
	"dharana-gateway/internal/packet"
)

// Registry 订阅注册表
type Registry struct {
	*dispose.ServiceBase

	broker broker.MessageBroker
	logger corelog.Logger

	mu      sync.RWMutex
	byTopic map[string]map[string]conn.Sender // topic -> connID -> sender
	byConn  map[string]map[string]struct{}    // connID -> topics

	// topicLocks 按主题串行化代理侧的订阅与退订，不同主题互不等待
	locksMu    sync.Mutex
	topicLocks map[string]*topicLock

	// streamsMu 只保护 streams，不跨代理调用持有
	streamsMu sync.Mutex
	streams   map[string]struct{}
	pumps     sync.WaitGroup
}

type topicLock struct {
	mu   sync.Mutex
	refs int
}

// NewRegistry 创建订阅注册表
func NewRegistry(ctx context.Context, b broker.MessageBroker, logger corelog.Logger) *Registry {
	if logger == nil {
		logger = corelog.Default()
	}
	r := &Registry{
		ServiceBase: dispose.NewService("SubscriptionRegistry", ctx),
		broker:      b,
		logger:      logger,
		byTopic:     make(map[string]map[string]conn.Sender),
		byConn:      make(map[string]map[string]struct{}),
		topicLocks:  make(map[string]*topicLock),
		streams:     make(map[string]struct{}),
	}
	r.AddCleanHandler(r.shutdown)
	return r
}

// Subscribe 登记连接对主题的订阅
// 首次订阅时投递该主题的保留消息；重复订阅返回 false 且不重复投递。
// 代理订阅失败时登记保留，下一次对该主题的订阅或退订会重新尝试。
func (r *Registry) Subscribe(ctx context.Context, c conn.Sender, topic string) (bool, error) {
	if r.IsClosed() {
		return false, coreerrors.ErrServiceClosed
	}

	r.mu.Lock()
	subs, ok := r.byTopic[topic]
	if !ok {
		subs = make(map[string]conn.Sender)
		r.byTopic[topic] = subs
	}
	_, exists := subs[c.ID()]
	subs[c.ID()] = c
	topics, ok := r.byConn[c.ID()]
	if !ok {
		topics = make(map[string]struct{})
		r.byConn[c.ID()] = topics
	}
	topics[topic] = struct{}{}
	r.mu.Unlock()

	if err := r.reconcile(ctx, topic); err != nil {
		return !exists, err
	}
	if exists {
		return false, nil
	}

	log := r.logger.WithFields(map[string]interface{}{
		corelog.FieldConnID: c.ID(),
		corelog.FieldTopic:  topic,
	})
	log.Infof("SubscriptionRegistry: subscribed")

	msg, err := r.broker.Retained(ctx, topic)
	if err != nil {
		log.Warnf("SubscriptionRegistry: retained lookup failed: %v", err)
		return true, nil
	}
	if msg != nil && len(msg.Payload) > 0 {
		if c.Send(packet.BuildDelivery(topic, string(msg.Payload))) {
			metrics.IncrementCounter(metrics.GatewayDeliveriesTotal, map[string]string{"kind": "retained"})
		}
	}
	return true, nil
}

// Unsubscribe 取消连接对主题的订阅，未订阅返回 false
func (r *Registry) Unsubscribe(ctx context.Context, c conn.Sender, topic string) (bool, error) {
	r.mu.Lock()
	removed := r.removeLocked(c.ID(), topic)
	r.mu.Unlock()

	if !removed {
		return false, nil
	}
	r.logger.WithFields(map[string]interface{}{
		corelog.FieldConnID: c.ID(),
		corelog.FieldTopic:  topic,
	}).Infof("SubscriptionRegistry: unsubscribed")
	return true, r.reconcile(ctx, topic)
}

// RemoveAll 移除连接的全部订阅，返回被移除的主题
func (r *Registry) RemoveAll(ctx context.Context, c conn.Sender) []string {
	r.mu.Lock()
	topics := make([]string, 0, len(r.byConn[c.ID()]))
	for topic := range r.byConn[c.ID()] {
		topics = append(topics, topic)
	}
	for _, topic := range topics {
		r.removeLocked(c.ID(), topic)
	}
	r.mu.Unlock()

	sort.Strings(topics)
	for _, topic := range topics {
		if err := r.reconcile(ctx, topic); err != nil {
			r.logger.WithField(corelog.FieldTopic, topic).Warnf("SubscriptionRegistry: broker unsubscribe failed: %v", err)
		}
	}
	return topics
}

// removeLocked 调用方持有 r.mu
func (r *Registry) removeLocked(connID, topic string) bool {
	subs, ok := r.byTopic[topic]
	if !ok {
		return false
	}
	if _, ok := subs[connID]; !ok {
		return false
	}
	delete(subs, connID)
	if len(subs) == 0 {
		delete(r.byTopic, topic)
	}
	if topics, ok := r.byConn[connID]; ok {
		delete(topics, topic)
		if len(topics) == 0 {
			delete(r.byConn, connID)
		}
	}
	return true
}

// lockTopic 获取主题锁，返回解锁函数；无人等待时回收
func (r *Registry) lockTopic(topic string) func() {
	r.locksMu.Lock()
	l, ok := r.topicLocks[topic]
	if !ok {
		l = &topicLock{}
		r.topicLocks[topic] = l
	}
	l.refs++
	r.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		r.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.topicLocks, topic)
		}
		r.locksMu.Unlock()
	}
}

// reconcile 让代理侧订阅与注册表一致：有订阅者则保持订阅流，没有则退订
// 同一主题的调用按顺序执行，代理 I/O 期间不持有注册表的任何全局锁
func (r *Registry) reconcile(ctx context.Context, topic string) error {
	unlock := r.lockTopic(topic)
	defer unlock()

	r.mu.RLock()
	want := len(r.byTopic[topic]) > 0
	r.mu.RUnlock()
	r.streamsMu.Lock()
	_, have := r.streams[topic]
	r.streamsMu.Unlock()

	switch {
	case want && !have:
		if r.IsClosed() {
			return coreerrors.ErrServiceClosed
		}
		ch, err := r.broker.Subscribe(ctx, topic)
		if err != nil {
			return coreerrors.Wrapf(err, coreerrors.CodeUnavailable, "subscribe %s", topic)
		}

		r.streamsMu.Lock()
		if r.IsClosed() {
			// shutdown 已取走 streams，这条流由这里释放
			r.streamsMu.Unlock()
			_ = r.broker.Unsubscribe(context.Background(), topic)
			return coreerrors.ErrServiceClosed
		}
		r.streams[topic] = struct{}{}
		n := len(r.streams)
		r.pumps.Add(1)
		r.streamsMu.Unlock()

		go r.pump(topic, ch)
		metrics.SetGauge(metrics.GatewayTopics, float64(n), nil)
	case !want && have:
		r.streamsMu.Lock()
		delete(r.streams, topic)
		n := len(r.streams)
		r.streamsMu.Unlock()

		metrics.SetGauge(metrics.GatewayTopics, float64(n), nil)
		if err := r.broker.Unsubscribe(ctx, topic); err != nil {
			return coreerrors.Wrapf(err, coreerrors.CodeUnavailable, "unsubscribe %s", topic)
		}
	}
	return nil
}

// pump 把代理消息扇出给订阅者，代理关闭订阅流后退出
func (r *Registry) pump(topic string, ch <-chan *broker.Message) {
	defer r.pumps.Done()
	for msg := range ch {
		frame := packet.BuildDelivery(msg.Topic, string(msg.Payload))

		r.mu.RLock()
		targets := make([]conn.Sender, 0, len(r.byTopic[topic]))
		for _, s := range r.byTopic[topic] {
			targets = append(targets, s)
		}
		r.mu.RUnlock()

		for _, s := range targets {
			if s.Send(frame) {
				metrics.IncrementCounter(metrics.GatewayDeliveriesTotal, map[string]string{"kind": "live"})
			} else {
				metrics.Dropped("send_queue")
			}
		}
	}
}

// Subscribers 主题当前的订阅连接 ID
func (r *Registry) Subscribers(topic string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.byTopic[topic]))
	for id := range r.byTopic[topic] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Topics 连接订阅的主题
func (r *Registry) Topics(connID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	topics := make([]string, 0, len(r.byConn[connID]))
	for t := range r.byConn[connID] {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics
}

// Count 主题的订阅连接数
func (r *Registry) Count(topic string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byTopic[topic])
}

// ActiveTopics 有订阅者的主题数
func (r *Registry) ActiveTopics() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byTopic)
}

func (r *Registry) shutdown() error {
	r.streamsMu.Lock()
	topics := make([]string, 0, len(r.streams))
	for t := range r.streams {
		topics = append(topics, t)
	}
	r.streams = make(map[string]struct{})
	r.streamsMu.Unlock()

	var errs []error
	for _, t := range topics {
		if err := r.broker.Unsubscribe(context.Background(), t); err != nil && !coreerrors.Is(err, broker.ErrNotSubscribed) && !coreerrors.Is(err, broker.ErrBrokerClosed) {
			errs = append(errs, err)
		}
	}
	r.pumps.Wait()
	r.logger.Infof("SubscriptionRegistry: closed, released %d broker topics", len(topics))
	return errors.Join(errs...)
}
