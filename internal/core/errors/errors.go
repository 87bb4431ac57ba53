// Package errors 网关统一错误类型
//
// 错误码对应网关的错误分类，所有错误都可通过 errors.Is 按错误码比较。
// 除启动配置错误外，任何错误都不会终止进程。
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode 错误码
type ErrorCode string

const (
	// 输入错误：帧不是合法 JSON，也不是合法的旧版管道分隔格式
	CodeMalformedFrame ErrorCode = "MALFORMED_FRAME"
	// 协议违规：发送方 ID 冲突、未入房间发送信令等
	CodeProtocolError ErrorCode = "PROTOCOL_ERROR"
	// 目标不存在：信令目标对端无法解析
	CodeUnresolvedTarget ErrorCode = "UNRESOLVED_TARGET"
	// Broker 不可用：发布或订阅失败
	CodeUnavailable ErrorCode = "UNAVAILABLE"
	// 连接 I/O 错误
	CodeConnectionError ErrorCode = "CONNECTION_ERROR"

	CodeUnknownCommand ErrorCode = "UNKNOWN_COMMAND"
	CodeRateLimited    ErrorCode = "RATE_LIMITED"
	CodeInvalidParam   ErrorCode = "INVALID_PARAM"
	CodeConfigError    ErrorCode = "CONFIG_ERROR"
	CodeServiceClosed  ErrorCode = "SERVICE_CLOSED"
	CodeInternal       ErrorCode = "INTERNAL_ERROR"

	// 代理订阅流状态
	CodeAlreadySubscribed ErrorCode = "ALREADY_SUBSCRIBED"
	CodeNotSubscribed     ErrorCode = "NOT_SUBSCRIBED"
)

// Error 统一错误类型
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is 按错误码比较
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(err error, code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message, Cause: err}
}

func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// GetCode 提取错误码，非 *Error 视为内部错误
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsCode 检查错误码
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

var (
	Is = errors.Is
	As = errors.As
)
