package metrics

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"dharana-gateway/internal/core/dispose"
)

// MemoryMetrics 进程内指标实现
type MemoryMetrics struct {
	*dispose.ResourceBase

	mu       sync.RWMutex
	counters map[string]*int64
	gauges   map[string]float64
}

func NewMemoryMetrics(parentCtx context.Context) *MemoryMetrics {
	m := &MemoryMetrics{
		ResourceBase: dispose.NewResourceBase("MemoryMetrics"),
		counters:     make(map[string]*int64),
		gauges:       make(map[string]float64),
	}
	m.Initialize(parentCtx)
	return m
}

func (m *MemoryMetrics) counter(key string) *int64 {
	m.mu.RLock()
	c, ok := m.counters[key]
	m.mu.RUnlock()
	if ok {
		return c
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok = m.counters[key]; !ok {
		c = new(int64)
		m.counters[key] = c
	}
	return c
}

func (m *MemoryMetrics) IncrementCounter(name string, labels map[string]string) error {
	atomic.AddInt64(m.counter(buildKey(name, labels)), 1)
	return nil
}

func (m *MemoryMetrics) AddCounter(name string, value float64, labels map[string]string) error {
	atomic.AddInt64(m.counter(buildKey(name, labels)), int64(value))
	return nil
}

func (m *MemoryMetrics) GetCounter(name string, labels map[string]string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.counters[buildKey(name, labels)]; ok {
		return float64(atomic.LoadInt64(c)), nil
	}
	return 0, nil
}

func (m *MemoryMetrics) SetGauge(name string, value float64, labels map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[buildKey(name, labels)] = value
	return nil
}

func (m *MemoryMetrics) AddGauge(name string, delta float64, labels map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[buildKey(name, labels)] += delta
	return nil
}

func (m *MemoryMetrics) GetGauge(name string, labels map[string]string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gauges[buildKey(name, labels)], nil
}

func (m *MemoryMetrics) Snapshot() map[string]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]float64, len(m.counters)+len(m.gauges))
	for k, c := range m.counters {
		out[k] = float64(atomic.LoadInt64(c))
	}
	for k, v := range m.gauges {
		out[k] = v
	}
	return out
}

func (m *MemoryMetrics) Close() error {
	return m.ResourceBase.Close()
}

// buildKey 标签按键名排序，保证相同标签集合得到相同的键
func buildKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	key := name
	for _, k := range keys {
		key = fmt.Sprintf("%s{%s=%s}", key, k, labels[k])
	}
	return key
}
