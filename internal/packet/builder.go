package packet

import (
	"encoding/json"
	"fmt"

	"dharana-gateway/internal/constants"
)

// Delivery 推送给订阅者的帧
type Delivery struct {
	Channel string `json:"channel"`
	Message string `json:"message"`
}

// PeerInfo 房间成员
type PeerInfo struct {
	PeerID         string `json:"peerId"`
	SimpleWebRTCID string `json:"simpleWebRTCId,omitempty"`
}

// Notification 网关下发的信令通知
type Notification struct {
	Type           string          `json:"type"`
	RoomID         string          `json:"roomId,omitempty"`
	PeerID         string          `json:"peerId,omitempty"`
	SimpleWebRTCID string          `json:"simpleWebRTCId,omitempty"`
	SenderID       string          `json:"senderId,omitempty"`
	Peers          []PeerInfo      `json:"peers,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

func mustMarshal(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		// 以上类型均可序列化，出错说明调用方传入了非法 RawMessage
		panic(fmt.Sprintf("packet: marshal %T: %v", v, err))
	}
	return data
}

// BuildDelivery {channel, message}
func BuildDelivery(channel, message string) []byte {
	return mustMarshal(&Delivery{Channel: channel, Message: message})
}

// BuildAck needsAck 的确认帧
func BuildAck(channel string) []byte {
	return BuildDelivery(constants.AckChannel, fmt.Sprintf("Received on [%s]", channel))
}

// BuildAssignID 告知连接自己的服务端 ID
func BuildAssignID(connID string) []byte {
	return mustMarshal(&Notification{Type: SignalAssignID, PeerID: connID})
}

// BuildJoinedRoom 入房确认，附带已在房间内的成员
func BuildJoinedRoom(roomID, connID string, peers []PeerInfo) []byte {
	if peers == nil {
		peers = []PeerInfo{}
	}
	return mustMarshal(&struct {
		Type   string     `json:"type"`
		RoomID string     `json:"roomId"`
		PeerID string     `json:"peerId"`
		Peers  []PeerInfo `json:"peers"`
	}{SignalJoinedRoom, roomID, connID, peers})
}

// BuildPeerJoined 通知房间其他成员有新成员
func BuildPeerJoined(roomID string, peer PeerInfo) []byte {
	return mustMarshal(&Notification{
		Type:           SignalPeerJoined,
		RoomID:         roomID,
		PeerID:         peer.PeerID,
		SimpleWebRTCID: peer.SimpleWebRTCID,
	})
}

// BuildPeerLeft 通知房间剩余成员有成员离开
func BuildPeerLeft(roomID string, peer PeerInfo) []byte {
	return mustMarshal(&Notification{
		Type:           SignalPeerLeft,
		RoomID:         roomID,
		PeerID:         peer.PeerID,
		SimpleWebRTCID: peer.SimpleWebRTCID,
	})
}

// BuildRelayedSignal 转发 offer/answer/ice_candidate，附带发送方身份
func BuildRelayedSignal(signalType, roomID string, from PeerInfo, payload json.RawMessage) []byte {
	return mustMarshal(&Notification{
		Type:           signalType,
		RoomID:         roomID,
		SenderID:       from.PeerID,
		SimpleWebRTCID: from.SimpleWebRTCID,
		Payload:        payload,
	})
}
