package management

import (
	"net/http"
	"time"

	"dharana-gateway/internal/conn"
	"dharana-gateway/internal/httpservice"
	"dharana-gateway/internal/packet"
)

// StatsResponse /stats 响应
type StatsResponse struct {
	ActiveConnections int                `json:"active_connections"`
	ActiveRooms       int                `json:"active_rooms"`
	ActiveTopics      int                `json:"active_topics"`
	Rooms             []string           `json:"rooms"`
	Metrics           map[string]float64 `json:"metrics,omitempty"`
	Time              string             `json:"time"`
}

// RoomResponse 单个房间
type RoomResponse struct {
	RoomID  string            `json:"room_id"`
	Members []packet.PeerInfo `json:"members"`
}

// TopicResponse 单个主题
type TopicResponse struct {
	Topic       string `json:"topic"`
	Subscribers int    `json:"subscribers"`
}

// handleGetStats 网关概况
func (m *ManagementModule) handleGetStats(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{
		Rooms: []string{},
		Time:  time.Now().UTC().Format(time.RFC3339),
	}
	if m.deps != nil {
		if m.deps.SessionMgr != nil {
			resp.ActiveConnections = m.deps.SessionMgr.ActiveConnections()
			resp.ActiveRooms = m.deps.SessionMgr.ActiveRooms()
		}
		if m.deps.Rooms != nil {
			resp.Rooms = m.deps.Rooms.Rooms()
		}
		if m.deps.Topics != nil {
			resp.ActiveTopics = m.deps.Topics.ActiveTopics()
		}
	}
	if mm := m.metricsSource(); mm != nil {
		resp.Metrics = mm.Snapshot()
	}
	httpservice.RespondJSON(w, http.StatusOK, resp)
}

// handleListConnections 连接列表
func (m *ManagementModule) handleListConnections(w http.ResponseWriter, r *http.Request) {
	if m.deps == nil || m.deps.SessionMgr == nil {
		httpservice.RespondError(w, http.StatusServiceUnavailable, "session manager not configured")
		return
	}
	infos := m.deps.SessionMgr.List()
	if infos == nil {
		infos = []*conn.Info{}
	}
	httpservice.RespondJSON(w, http.StatusOK, infos)
}

// handleGetRoom 房间成员
func (m *ManagementModule) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	roomID, err := getStringPathVar(r, "room_id")
	if err != nil {
		httpservice.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if m.deps == nil || m.deps.Rooms == nil {
		httpservice.RespondError(w, http.StatusServiceUnavailable, "room directory not configured")
		return
	}

	members := m.deps.Rooms.Members(roomID)
	if len(members) == 0 {
		httpservice.RespondError(w, http.StatusNotFound, "room not found")
		return
	}
	httpservice.RespondJSON(w, http.StatusOK, RoomResponse{RoomID: roomID, Members: members})
}

// handleGetTopic 主题订阅数，未订阅的主题返回 0
func (m *ManagementModule) handleGetTopic(w http.ResponseWriter, r *http.Request) {
	topic, err := getStringPathVar(r, "topic")
	if err != nil {
		httpservice.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if m.deps == nil || m.deps.Topics == nil {
		httpservice.RespondError(w, http.StatusServiceUnavailable, "subscription registry not configured")
		return
	}
	httpservice.RespondJSON(w, http.StatusOK, TopicResponse{Topic: topic, Subscribers: m.deps.Topics.Count(topic)})
}
