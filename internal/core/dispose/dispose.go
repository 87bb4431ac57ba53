// Package dispose 资源生命周期管理
// 组件嵌入 ServiceBase 获得可取消的上下文和按序执行的清理回调
package dispose

import (
	"context"
	"errors"
	"fmt"
	"sync"

	corelog "dharana-gateway/internal/core/log"
)

// Disposable 可释放资源
type Disposable interface {
	Dispose() error
}

// CleanupError 单个清理回调的错误
type CleanupError struct {
	Resource string
	Index    int
	Err      error
}

func (e *CleanupError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("cleanup %s handler[%d] failed: %v", e.Resource, e.Index, e.Err)
	}
	return fmt.Sprintf("cleanup handler[%d] failed: %v", e.Index, e.Err)
}

func (e *CleanupError) Unwrap() error {
	return e.Err
}

// Dispose 上下文 + 清理回调，只执行一次
type Dispose struct {
	mu       sync.Mutex
	closed   bool
	ctx      context.Context
	cancel   context.CancelFunc
	handlers []func() error
	errs     []error
	name     string
}

func (d *Dispose) Ctx() context.Context {
	return d.ctx
}

func (d *Dispose) IsClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// AddCleanHandler 追加清理回调，按添加顺序执行
func (d *Dispose) AddCleanHandler(f func() error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = append(d.handlers, f)
}

// SetCtx 绑定父上下文，父上下文取消时自动执行清理
func (d *Dispose) SetCtx(parent context.Context, onClose func() error) {
	if d.ctx != nil {
		corelog.Warnf("Dispose: ctx already set for %s", d.name)
		return
	}
	if parent == nil {
		parent = context.Background()
	}
	if onClose != nil {
		d.AddCleanHandler(onClose)
	}
	d.ctx, d.cancel = context.WithCancel(parent)

	go func() {
		<-d.ctx.Done()
		_ = d.Close()
	}()
}

// Close 取消上下文并执行清理回调，重复调用返回首次的结果
func (d *Dispose) Close() error {
	d.mu.Lock()
	if d.closed {
		err := errors.Join(d.errs...)
		d.mu.Unlock()
		return err
	}
	d.closed = true
	handlers := make([]func() error, len(d.handlers))
	copy(handlers, d.handlers)
	d.mu.Unlock()

	if d.cancel != nil {
		d.cancel()
	}

	var errs []error
	for i, h := range handlers {
		if err := h(); err != nil {
			errs = append(errs, &CleanupError{Resource: d.name, Index: i, Err: err})
			corelog.Errorf("Dispose: cleanup handler[%d] of %s failed: %v", i, d.name, err)
		}
	}

	d.mu.Lock()
	d.errs = errs
	d.mu.Unlock()
	return errors.Join(errs...)
}

// Dispose 实现 Disposable
func (d *Dispose) Dispose() error {
	return d.Close()
}
