package command

import (
	"time"

	corelog "dharana-gateway/internal/core/log"
	"dharana-gateway/internal/core/metrics"
)

// LoggingMiddleware 日志中间件
type LoggingMiddleware struct{}

// Process 实现Middleware接口
func (lm *LoggingMiddleware) Process(ctx *CommandContext, next func(*CommandContext) error) error {
	start := time.Now()
	err := next(ctx)

	log := ctx.Conn.Logger().WithField(corelog.FieldCommand, ctx.Name)
	if err != nil {
		log.Debugf("Command failed: %s, Duration: %v, Error: %v", ctx.Category, time.Since(start), err)
	} else {
		log.Debugf("Command completed: %s, Duration: %v", ctx.Category, time.Since(start))
	}
	return err
}

// MetricsMiddleware 指标中间件，写入全局 metrics
type MetricsMiddleware struct{}

// Process 实现Middleware接口
func (mm *MetricsMiddleware) Process(ctx *CommandContext, next func(*CommandContext) error) error {
	err := next(ctx)

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.IncrementCounter(metrics.GatewayCommandsTotal, map[string]string{
		"category": ctx.Category.String(),
		"command":  ctx.Name,
		"status":   status,
	})
	return err
}
