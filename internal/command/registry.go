package command

import (
	"fmt"
	"sort"
	"sync"

	corelog "dharana-gateway/internal/core/log"
)

type handlerKey struct {
	category CommandCategory
	name     string
}

// CommandRegistry 命令注册器
type CommandRegistry struct {
	handlers map[handlerKey]CommandHandler
	mu       sync.RWMutex
}

// NewCommandRegistry 创建新的命令注册器
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		handlers: make(map[handlerKey]CommandHandler),
	}
}

// Register 注册命令处理器
func (cr *CommandRegistry) Register(handler CommandHandler) error {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	if handler.GetName() == "" {
		return fmt.Errorf("invalid command name: empty")
	}
	key := handlerKey{handler.GetCategory(), handler.GetName()}
	if _, exists := cr.handlers[key]; exists {
		return fmt.Errorf("handler for %s command %q already registered", key.category, key.name)
	}
	cr.handlers[key] = handler

	corelog.Debugf("CommandRegistry: registered %s handler %q", key.category, key.name)
	return nil
}

// Unregister 注销命令处理器
func (cr *CommandRegistry) Unregister(category CommandCategory, name string) error {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	key := handlerKey{category, name}
	if _, exists := cr.handlers[key]; !exists {
		return fmt.Errorf("handler for %s command %q not found", category, name)
	}
	delete(cr.handlers, key)
	return nil
}

// GetHandler 获取命令处理器
func (cr *CommandRegistry) GetHandler(category CommandCategory, name string) (CommandHandler, bool) {
	cr.mu.RLock()
	defer cr.mu.RUnlock()

	handler, exists := cr.handlers[handlerKey{category, name}]
	return handler, exists
}

// ListHandlers 列出某分类下已注册的命令名
func (cr *CommandRegistry) ListHandlers(category CommandCategory) []string {
	cr.mu.RLock()
	defer cr.mu.RUnlock()

	names := make([]string, 0, len(cr.handlers))
	for key := range cr.handlers {
		if key.category == category {
			names = append(names, key.name)
		}
	}
	sort.Strings(names)
	return names
}

// GetHandlerCount 获取处理器数量
func (cr *CommandRegistry) GetHandlerCount() int {
	cr.mu.RLock()
	defer cr.mu.RUnlock()
	return len(cr.handlers)
}
