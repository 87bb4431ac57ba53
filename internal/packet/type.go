// Package packet 网关帧格式
//
// 入站帧有两种格式：JSON 控制帧（含 command 或 type 字段的对象），
// 以及旧版管道分隔信令帧 COMMAND|sender|target|...。
// 解析结果是一个封闭的 Frame 联合类型，调用方按具体类型分发。
package packet

import (
	"encoding/json"
	"strings"
)

// Frame 入站帧
type Frame interface {
	isFrame()
}

// 控制命令
const (
	CommandSubscribe   = "subscribe"
	CommandUnsubscribe = "unsubscribe"
	CommandPublish     = "publish"
	CommandDebugLog    = "debug_log"
)

// JSON 信令类型
const (
	SignalJoinRoom     = "join_room"
	SignalLeaveRoom    = "leave_room"
	SignalOffer        = "offer"
	SignalAnswer       = "answer"
	SignalICECandidate = "ice_candidate"

	SignalAssignID   = "assign_id"
	SignalJoinedRoom = "joined_room"
	SignalPeerJoined = "peer_joined"
	SignalPeerLeft   = "peer_left"
)

// IsSignalRequest 是否为客户端可发起的信令类型
func IsSignalRequest(verb string) bool {
	switch verb {
	case SignalJoinRoom, SignalLeaveRoom, SignalOffer, SignalAnswer, SignalICECandidate:
		return true
	}
	return false
}

// 旧版信令命令
const (
	LegacyNewPeer    = "NEWPEER"
	LegacyNewPeerAck = "NEWPEERACK"
	LegacyOffer      = "OFFER"
	LegacyAnswer     = "ANSWER"
	LegacyCandidate  = "CANDIDATE"
	LegacyData       = "DATA"
	LegacyComplete   = "COMPLETE"
	LegacyDispose    = "DISPOSE"
)

// ControlFrame JSON 控制帧
type ControlFrame struct {
	Command    string          `json:"command"`
	Channel    string          `json:"channel,omitempty"`
	Message    json.RawMessage `json:"message,omitempty"`
	Timestamp  string          `json:"timestamp,omitempty"`
	StackTrace json.RawMessage `json:"stackTrace,omitempty"`
	NeedsAck   bool            `json:"needsAck,omitempty"`
}

func (*ControlFrame) isFrame() {}

// MessageText message 字段的文本形式
// JSON 字符串取其内容，其他 JSON 值保留原始文本，缺失为空串
func (c *ControlFrame) MessageText() string {
	if len(c.Message) == 0 || string(c.Message) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(c.Message, &s); err == nil {
		return s
	}
	return string(c.Message)
}

// SignalFrame JSON 信令帧
type SignalFrame struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId,omitempty"`
	// PeerID 目标对端，可以是服务端连接 ID 或对端声明的 ID，为空表示房间内广播
	PeerID string `json:"peerId,omitempty"`
	// SimpleWebRTCID 发送方声明的对端 ID
	SimpleWebRTCID string          `json:"simpleWebRTCId,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

func (*SignalFrame) isFrame() {}

// LegacyFrame 旧版管道分隔信令帧，转发时使用 Raw 原样发送
type LegacyFrame struct {
	Command string
	Sender  string
	Target  string
	Fields  []string
	Raw     []byte
}

func (*LegacyFrame) isFrame() {}

// IsBroadcast 目标是否为房间广播
func (l *LegacyFrame) IsBroadcast(wildcard string) bool {
	return strings.EqualFold(l.Target, wildcard)
}

// SelfTestFrame 客户端自测帧，直接丢弃
type SelfTestFrame struct {
	Raw []byte
}

func (*SelfTestFrame) isFrame() {}
