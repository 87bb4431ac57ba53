package constants

import "time"

// 端口
const (
	DefaultWebSocketPort = 3000
	DefaultMQTTPort      = 1883
	DefaultWebSocketPath = "/"
)

// 主题
const (
	// DefaultSystemTopicPrefix 系统主题前缀，不向客户端转发
	DefaultSystemTopicPrefix = "$SYS"
	// DefaultDebugChannel debug_log 未指定 channel 时使用
	DefaultDebugChannel = "debug/logs"
	// AckChannel needsAck 确认帧使用的 channel
	AckChannel = "ack"
)

// 信令
const (
	DefaultRoomID = "default"
	// BroadcastTarget 旧版信令中表示广播给房间其他成员
	BroadcastTarget = "ALL"
	// DefaultSelfTestMarker 以此开头的帧为客户端自测帧，直接丢弃
	DefaultSelfTestMarker = "SELFTEST"
)

// 连接
const (
	DefaultSendQueueSize     = 256
	DefaultReadLimit         = 1 << 20
	DefaultWriteWait         = 10 * time.Second
	DefaultReconnectInterval = 5 * time.Second
)
