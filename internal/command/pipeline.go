package command

// CommandPipeline 命令处理管道
type CommandPipeline struct {
	middleware []Middleware
	handler    CommandHandler
}

// NewCommandPipeline 创建新的命令管道
func NewCommandPipeline(middleware []Middleware, handler CommandHandler) *CommandPipeline {
	return &CommandPipeline{
		middleware: middleware,
		handler:    handler,
	}
}

// Execute 执行命令管道
func (cp *CommandPipeline) Execute(ctx *CommandContext) error {
	next := cp.handler.Handle

	// 从后往前包装中间件
	for i := len(cp.middleware) - 1; i >= 0; i-- {
		currentMiddleware := cp.middleware[i]
		currentNext := next
		next = func(ctx *CommandContext) error {
			return currentMiddleware.Process(ctx, currentNext)
		}
	}

	return next(ctx)
}
