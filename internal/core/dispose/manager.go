package dispose

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	corelog "dharana-gateway/internal/core/log"
)

// ResourceManager 按注册的相反顺序释放资源
type ResourceManager struct {
	mu        sync.Mutex
	resources map[string]Disposable
	order     []string
}

func NewResourceManager() *ResourceManager {
	return &ResourceManager{resources: make(map[string]Disposable)}
}

// Register 注册资源，名称不可重复
func (rm *ResourceManager) Register(name string, resource Disposable) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if _, exists := rm.resources[name]; exists {
		return fmt.Errorf("resource %s already registered", name)
	}
	rm.resources[name] = resource
	rm.order = append(rm.order, name)
	corelog.Debugf("ResourceManager: registered %s", name)
	return nil
}

func (rm *ResourceManager) List() []string {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	names := make([]string, len(rm.order))
	copy(names, rm.order)
	return names
}

// DisposeAll 释放全部资源，后注册的先释放
func (rm *ResourceManager) DisposeAll() error {
	rm.mu.Lock()
	order := rm.order
	resources := rm.resources
	rm.order = nil
	rm.resources = make(map[string]Disposable)
	rm.mu.Unlock()

	var errs []error
	for i := len(order) - 1; i >= 0; i-- {
		name := order[i]
		if err := resources[name].Dispose(); err != nil {
			errs = append(errs, &CleanupError{Resource: name, Index: i, Err: err})
			corelog.Errorf("ResourceManager: failed to dispose %s: %v", name, err)
			continue
		}
		corelog.Debugf("ResourceManager: disposed %s", name)
	}
	return errors.Join(errs...)
}

// DisposeWithTimeout 超时后返回错误，未完成的释放继续在后台执行
func (rm *ResourceManager) DisposeWithTimeout(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- rm.DisposeAll() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("dispose timeout after %v", timeout)
	}
}
