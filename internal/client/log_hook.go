package client

import (
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	corelog "dharana-gateway/internal/core/log"

	"github.com/sirupsen/logrus"
)

const (
	// MaxRemoteMessageLength 远程日志 message 最大字符数（含截断标记）
	MaxRemoteMessageLength = 2048
	// MaxRemoteStackTraceLength 远程日志调用栈最大字符数（含截断标记）
	MaxRemoteStackTraceLength = 4096
	// maxDeferredLogs 一次发送期间最多暂存的日志条数
	maxDeferredLogs = 64
)

// LogSender 远程日志的发送端，Client 实现
type LogSender interface {
	Log(topic string, entry LogEntry) error
}

// RemoteLogHook 把 logrus 日志作为 debug_log 转发到网关
//
// 按级别发布到 <channel>/logs、/warnings、/errors；带 error 字段的 Error 及以上级别
// 发布到 /exceptions。发送过程中产生的日志先暂存，本次发送结束后补发；
// 补发过程中产生的日志直接丢弃，避免日志发送失败的日志无限循环。
type RemoteLogHook struct {
	sender   LogSender
	channel  string
	extended bool
	levels   []logrus.Level

	enabled atomic.Bool

	mu       sync.Mutex
	sending  bool
	draining bool
	deferred []deferredLog
}

type deferredLog struct {
	topic  string
	record LogEntry
}

// NewRemoteLogHook 创建日志钩子，默认转发 Info 及以上级别
func NewRemoteLogHook(sender LogSender, channel string, extended bool) *RemoteLogHook {
	if channel == "" {
		channel = DefaultDebugChannel
	}
	h := &RemoteLogHook{
		sender:   sender,
		channel:  channel,
		extended: extended,
		levels: []logrus.Level{
			logrus.PanicLevel,
			logrus.FatalLevel,
			logrus.ErrorLevel,
			logrus.WarnLevel,
			logrus.InfoLevel,
		},
	}
	h.enabled.Store(true)
	return h
}

// SetEnabled 运行时开关远程日志
func (h *RemoteLogHook) SetEnabled(enabled bool) {
	h.enabled.Store(enabled)
}

// Levels 实现 logrus.Hook
func (h *RemoteLogHook) Levels() []logrus.Level {
	return h.levels
}

// Fire 实现 logrus.Hook
func (h *RemoteLogHook) Fire(entry *logrus.Entry) error {
	if !h.enabled.Load() || h.sender == nil {
		return nil
	}
	rec := h.build(entry)

	h.mu.Lock()
	if h.sending {
		if !h.draining && len(h.deferred) < maxDeferredLogs {
			h.deferred = append(h.deferred, rec)
		}
		h.mu.Unlock()
		return nil
	}
	h.sending = true
	h.mu.Unlock()

	err := h.send(rec)

	h.mu.Lock()
	batch := h.deferred
	h.deferred = nil
	h.draining = true
	h.mu.Unlock()

	for _, r := range batch {
		if sendErr := h.send(r); sendErr != nil && err == nil {
			err = sendErr
		}
	}

	h.mu.Lock()
	h.sending = false
	h.draining = false
	h.mu.Unlock()
	return err
}

// build 在触发日志的 goroutine 上生成记录，调用栈属于日志产生处
func (h *RemoteLogHook) build(entry *logrus.Entry) deferredLog {
	topic, message := h.classify(entry)
	record := LogEntry{
		Message:   truncateRemote(message, MaxRemoteMessageLength),
		Timestamp: entry.Time.UTC().Format(time.RFC3339),
	}
	if h.extended {
		record.StackTrace = truncateRemote(string(debug.Stack()), MaxRemoteStackTraceLength)
	}
	return deferredLog{topic: topic, record: record}
}

func (h *RemoteLogHook) send(r deferredLog) error {
	if err := h.sender.Log(r.topic, r.record); err != nil {
		// 返回错误由 logrus 打到 stderr，不经过钩子
		return fmt.Errorf("remote log to %s: %w", r.topic, err)
	}
	return nil
}

func (h *RemoteLogHook) classify(entry *logrus.Entry) (topic, message string) {
	message = entry.Message
	if err, ok := entry.Data[logrus.ErrorKey].(error); ok && entry.Level <= logrus.ErrorLevel {
		return h.channel + "/exceptions", fmt.Sprintf("[EXCEPTION] %s: %v", message, err)
	}

	switch entry.Level {
	case logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel:
		return h.channel + "/errors", message
	case logrus.WarnLevel:
		return h.channel + "/warnings", message
	default:
		return h.channel + "/logs", message
	}
}

// truncateRemote 截断到 max 个字符，截断标记计入长度
func truncateRemote(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	keep := max - len([]rune(corelog.TruncatedSuffix))
	if keep < 0 {
		keep = 0
	}
	return string(runes[:keep]) + corelog.TruncatedSuffix
}
