package errors

// 哨兵错误，用于 errors.Is 比较
var (
	ErrMalformedFrame   = New(CodeMalformedFrame, "malformed frame")
	ErrProtocolError    = New(CodeProtocolError, "protocol violation")
	ErrUnresolvedTarget = New(CodeUnresolvedTarget, "unresolved target")
	ErrUnavailable      = New(CodeUnavailable, "broker unavailable")
	ErrConnectionError  = New(CodeConnectionError, "connection error")
	ErrUnknownCommand   = New(CodeUnknownCommand, "unknown command")
	ErrRateLimited      = New(CodeRateLimited, "rate limit exceeded")
	ErrServiceClosed    = New(CodeServiceClosed, "service closed")

	ErrPeerIDConflict = New(CodeProtocolError, "peer id already bound to a different value")
	ErrReservedPeerID = New(CodeProtocolError, "peer id uses the server identifier format")
	ErrPeerIDTaken    = New(CodeProtocolError, "peer id owned by another connection")
	ErrNotInRoom      = New(CodeProtocolError, "connection is not in a room")
)

// KeepsConnection 错误是否允许连接继续使用
// 只有 I/O 错误需要关闭连接
func KeepsConnection(err error) bool {
	return !IsCode(err, CodeConnectionError)
}
