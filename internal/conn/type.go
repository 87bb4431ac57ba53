// Package conn 网关连接的公共类型
//
// 房间目录与订阅表只依赖这里的 Sender，不关心底层是 WebSocket 还是测试桩。
package conn

import "fmt"

// Sender 可投递帧的连接
type Sender interface {
	// ID 服务端分配的连接 ID（conn_ 前缀）
	ID() string
	// Send 非阻塞入队，连接已关闭或发送队列已满时返回 false
	Send(frame []byte) bool
}

// State 连接状态
type State byte

const (
	StateOpen State = iota + 1
	StateClosing
	StateClosed
)

// String 返回连接状态的字符串表示
func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// IsOpen 是否还能收发帧
func (s State) IsOpen() bool {
	return s == StateOpen
}
