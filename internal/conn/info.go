package conn

import (
	"fmt"
	"time"
)

// Info 连接快照，用于 /stats 和日志
type Info struct {
	ConnID      string    `json:"connId"`
	PeerID      string    `json:"peerId,omitempty"`
	RoomID      string    `json:"roomId,omitempty"`
	RemoteAddr  string    `json:"remoteAddr"`
	State       string    `json:"state"`
	Topics      int       `json:"topics"`
	ConnectedAt time.Time `json:"connectedAt"`
}

// String 返回连接信息的字符串表示
func (ci *Info) String() string {
	return fmt.Sprintf("Connection{ConnID:%s, PeerID:%s, RoomID:%s, RemoteAddr:%s, State:%s, Topics:%d}",
		ci.ConnID, ci.PeerID, ci.RoomID, ci.RemoteAddr, ci.State, ci.Topics)
}

// HasPeer 是否已绑定对端 ID
func (ci *Info) HasPeer() bool {
	return ci.PeerID != ""
}

// InRoom 是否在房间内
func (ci *Info) InRoom() bool {
	return ci.RoomID != ""
}
