package metrics

import (
	"errors"
	"sync"
)

var (
	globalMetrics Metrics
	globalMu      sync.RWMutex

	ErrNilMetrics = errors.New("metrics: SetGlobalMetrics called with nil")
)

// SetGlobalMetrics 设置全局实例，由 server 启动时调用
func SetGlobalMetrics(m Metrics) error {
	if m == nil {
		return ErrNilMetrics
	}
	globalMu.Lock()
	defer globalMu.Unlock()
	globalMetrics = m
	return nil
}

func GetGlobalMetrics() Metrics {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalMetrics
}

// 以下便捷函数在未初始化时静默忽略，组件无需判断是否启用了指标

func IncrementCounter(name string, labels map[string]string) {
	if m := GetGlobalMetrics(); m != nil {
		_ = m.IncrementCounter(name, labels)
	}
}

func AddGauge(name string, delta float64, labels map[string]string) {
	if m := GetGlobalMetrics(); m != nil {
		_ = m.AddGauge(name, delta, labels)
	}
}

func SetGauge(name string, value float64, labels map[string]string) {
	if m := GetGlobalMetrics(); m != nil {
		_ = m.SetGauge(name, value, labels)
	}
}

// Dropped 记录被丢弃的帧
func Dropped(reason string) {
	IncrementCounter(GatewayFramesDroppedTotal, map[string]string{"reason": reason})
}

func AddCounter(name string, value float64, labels map[string]string) {
	if m := GetGlobalMetrics(); m != nil {
		_ = m.AddCounter(name, value, labels)
	}
}
