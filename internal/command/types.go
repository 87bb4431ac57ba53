package command

import (
	"context"

	"dharana-gateway/internal/packet"
	"dharana-gateway/internal/session"
)

// CommandCategory 命令分类，对应入站帧的格式
type CommandCategory int

const (
	CategoryControl CommandCategory = iota // JSON 控制命令：订阅、发布、日志
	CategorySignal                         // JSON 信令
	CategoryLegacy                         // 旧版管道分隔信令
)

func (c CommandCategory) String() string {
	switch c {
	case CategoryControl:
		return "control"
	case CategorySignal:
		return "signal"
	case CategoryLegacy:
		return "legacy"
	default:
		return "unknown"
	}
}

// CommandContext 单帧的处理上下文
type CommandContext struct {
	context.Context

	Conn     *session.Connection
	Category CommandCategory
	Name     string
	Frame    packet.Frame
}

// CommandHandler 命令处理器
type CommandHandler interface {
	GetCategory() CommandCategory
	GetName() string
	Handle(ctx *CommandContext) error
}

// Middleware 命令中间件
type Middleware interface {
	Process(ctx *CommandContext, next func(*CommandContext) error) error
}

// HandlerFunc 把函数包装成 CommandHandler
type HandlerFunc struct {
	category CommandCategory
	name     string
	fn       func(*CommandContext) error
}

// NewHandler 创建函数式处理器
func NewHandler(category CommandCategory, name string, fn func(*CommandContext) error) *HandlerFunc {
	return &HandlerFunc{category: category, name: name, fn: fn}
}

func (h *HandlerFunc) GetCategory() CommandCategory    { return h.category }
func (h *HandlerFunc) GetName() string                 { return h.name }
func (h *HandlerFunc) Handle(ctx *CommandContext) error { return h.fn(ctx) }
