package utils

import (
	"runtime/debug"

	corelog "dharana-gateway/internal/core/log"
)

// SafeGo 启动 goroutine 并记录 panic，不让单个连接拖垮进程
func SafeGo(name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				corelog.Errorf("FATAL: goroutine '%s' panic recovered: %v", name, r)
				corelog.Errorf("Stack trace:\n%s", string(debug.Stack()))
			}
		}()
		fn()
	}()
}
