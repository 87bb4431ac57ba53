package log

// MaxPayloadLogLength 日志中负载的最大字符数
const MaxPayloadLogLength = 2048

// TruncatedSuffix 截断标记
const TruncatedSuffix = " ...[truncated]"

// Truncate 按字符数截断，超出部分以 TruncatedSuffix 替代
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + TruncatedSuffix
}

// Payload 截断到 MaxPayloadLogLength，用于记录帧和消息内容
func Payload(b []byte) string {
	return Truncate(string(b), MaxPayloadLogLength)
}
