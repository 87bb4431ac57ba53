// Package room 房间与对端目录
//
// 目录维护房间成员、连接所在房间、连接绑定的对端 ID，以及在房间内的
// 对端 ID 到连接的映射。所有表由同一把锁保护，通知帧在释放锁之后再投递。
package room

import (
	"sort"
	"strings"
	"sync"

	"dharana-gateway/internal/conn"
	coreerrors "dharana-gateway/internal/core/errors"
	corelog "dharana-gateway/internal/core/log"
	"dharana-gateway/internal/core/idgen"
	"dharana-gateway/internal/core/metrics"
	"dharana-gateway/internal/packet"
)

type member struct {
	sender conn.Sender
	peerID string
	roomID string
}

func (m *member) info() packet.PeerInfo {
	return packet.PeerInfo{PeerID: m.sender.ID(), SimpleWebRTCID: m.peerID}
}

type delivery struct {
	to    conn.Sender
	frame []byte
}

func flush(out []delivery) {
	for _, d := range out {
		d.to.Send(d.frame)
	}
}

// JoinResult 入房结果
type JoinResult struct {
	RoomID string
	// Joined 为 false 表示连接已在该房间，本次为重复加入
	Joined bool
	// Others 房间内除自己以外的成员
	Others []packet.PeerInfo
	// Previous 加入前所在的其他房间，没有则为空
	Previous string
}

// Directory 房间与对端目录
type Directory struct {
	mu      sync.Mutex
	rooms   map[string]map[string]*member // roomID -> connID -> member
	members map[string]*member            // connID -> member
	peers   map[string]string             // peerID -> connID，仅房间内成员
	binding map[string]string             // connID -> peerID，连接生命周期内只绑定一次

	wildcard string
	logger   corelog.Logger
}

// NewDirectory 创建目录，wildcard 为旧版信令的广播目标
func NewDirectory(wildcard string, logger corelog.Logger) *Directory {
	if logger == nil {
		logger = corelog.Default()
	}
	return &Directory{
		rooms:    make(map[string]map[string]*member),
		members:  make(map[string]*member),
		peers:    make(map[string]string),
		binding:  make(map[string]string),
		wildcard: wildcard,
		logger:   logger,
	}
}

// BindPeer 为连接绑定对端 ID，每个连接只能绑定一次
// 重复绑定相同 ID 是空操作；不同 ID 返回 ErrPeerIDConflict；
// conn_ 前缀返回 ErrReservedPeerID；被其他房间内连接占用返回 ErrPeerIDTaken。
func (d *Directory) BindPeer(c conn.Sender, peerID string) error {
	if peerID == "" {
		return coreerrors.ErrProtocolError
	}
	if idgen.IsServerID(peerID) {
		return coreerrors.ErrReservedPeerID
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if bound, ok := d.binding[c.ID()]; ok {
		if bound != peerID {
			return coreerrors.ErrPeerIDConflict
		}
		return nil
	}
	if owner, ok := d.peers[peerID]; ok && owner != c.ID() {
		return coreerrors.ErrPeerIDTaken
	}
	d.binding[c.ID()] = peerID
	if m, ok := d.members[c.ID()]; ok {
		m.peerID = peerID
		d.peers[peerID] = c.ID()
	}
	return nil
}

// PeerOf 连接绑定的对端 ID
func (d *Directory) PeerOf(connID string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.binding[connID]
}

// Join 把连接加入房间
// 连接已在其他房间时先离开原房间（原房间成员会收到 peer_left）。
// 连接已绑定对端 ID 时登记映射，该 ID 被其他房间内连接占用返回 ErrPeerIDTaken。
func (d *Directory) Join(c conn.Sender, roomID string) (*JoinResult, error) {
	var out []delivery

	d.mu.Lock()
	peerID := d.binding[c.ID()]
	if peerID != "" {
		if owner, ok := d.peers[peerID]; ok && owner != c.ID() {
			d.mu.Unlock()
			return nil, coreerrors.ErrPeerIDTaken
		}
	}

	result := &JoinResult{RoomID: roomID}
	m, exists := d.members[c.ID()]
	if exists && m.roomID != roomID {
		result.Previous = m.roomID
		out = d.leaveLocked(m)
		exists = false
	}

	if !exists {
		m = &member{sender: c, roomID: roomID, peerID: peerID}
		d.members[c.ID()] = m
		set, ok := d.rooms[roomID]
		if !ok {
			set = make(map[string]*member)
			d.rooms[roomID] = set
		}
		set[c.ID()] = m
		result.Joined = true
	}
	if peerID != "" {
		d.peers[peerID] = c.ID()
	}

	result.Others = d.othersLocked(roomID, c.ID())
	rooms := len(d.rooms)
	d.mu.Unlock()

	flush(out)
	metrics.SetGauge(metrics.GatewayRooms, float64(rooms), nil)
	if result.Joined {
		d.logger.WithFields(map[string]interface{}{
			corelog.FieldConnID: c.ID(),
			corelog.FieldRoomID: roomID,
			corelog.FieldPeerID: peerID,
		}).Infof("RoomDirectory: connection joined room, %d other members", len(result.Others))
	}
	return result, nil
}

// Leave 连接离开所在房间，剩余成员收到 peer_left
// 连接不在任何房间时返回 false
func (d *Directory) Leave(c conn.Sender) bool {
	return d.leave(c, true)
}

// LeaveQuietly 离开房间但不通知剩余成员
func (d *Directory) LeaveQuietly(c conn.Sender) bool {
	return d.leave(c, false)
}

func (d *Directory) leave(c conn.Sender, notify bool) bool {
	d.mu.Lock()
	m, ok := d.members[c.ID()]
	if !ok {
		d.mu.Unlock()
		return false
	}
	roomID := m.roomID
	out := d.leaveLocked(m)
	rooms := len(d.rooms)
	d.mu.Unlock()

	if !notify {
		out = nil
	}
	flush(out)
	metrics.SetGauge(metrics.GatewayRooms, float64(rooms), nil)
	d.logger.WithFields(map[string]interface{}{
		corelog.FieldConnID: c.ID(),
		corelog.FieldRoomID: roomID,
	}).Infof("RoomDirectory: connection left room, notified %d members", len(out))
	return true
}

// Disconnect 连接断开：离开房间并释放对端绑定
func (d *Directory) Disconnect(c conn.Sender) {
	d.Leave(c)
	d.mu.Lock()
	delete(d.binding, c.ID())
	d.mu.Unlock()
}

// leaveLocked 调用方持有 d.mu，返回需要在锁外投递的通知
func (d *Directory) leaveLocked(m *member) []delivery {
	connID := m.sender.ID()
	delete(d.members, connID)
	if m.peerID != "" && d.peers[m.peerID] == connID {
		delete(d.peers, m.peerID)
	}

	set := d.rooms[m.roomID]
	delete(set, connID)
	if len(set) == 0 {
		delete(d.rooms, m.roomID)
		return nil
	}

	frame := packet.BuildPeerLeft(m.roomID, m.info())
	out := make([]delivery, 0, len(set))
	for _, other := range set {
		out = append(out, delivery{to: other.sender, frame: frame})
	}
	return out
}

func (d *Directory) othersLocked(roomID, exclude string) []packet.PeerInfo {
	set := d.rooms[roomID]
	peers := make([]packet.PeerInfo, 0, len(set))
	for id, m := range set {
		if id == exclude {
			continue
		}
		peers = append(peers, m.info())
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i].PeerID < peers[j].PeerID })
	return peers
}

// Broadcast 发给同房间的其他成员，返回投递数
// 发送方不在房间内返回 ErrNotInRoom
func (d *Directory) Broadcast(from conn.Sender, frame []byte) (int, error) {
	d.mu.Lock()
	m, ok := d.members[from.ID()]
	if !ok {
		d.mu.Unlock()
		return 0, coreerrors.ErrNotInRoom
	}
	out := make([]delivery, 0, len(d.rooms[m.roomID]))
	for id, other := range d.rooms[m.roomID] {
		if id == from.ID() {
			continue
		}
		out = append(out, delivery{to: other.sender, frame: frame})
	}
	d.mu.Unlock()

	flush(out)
	metrics.AddCounter(metrics.GatewaySignalsRelayedTotal, float64(len(out)), nil)
	return len(out), nil
}

// SendTo 定向发给同房间的某个成员
// target 先按连接 ID 查找，再按对端 ID 查找；找不到或不在同一房间返回 ErrUnresolvedTarget
func (d *Directory) SendTo(from conn.Sender, target string, frame []byte) error {
	d.mu.Lock()
	m, ok := d.members[from.ID()]
	if !ok {
		d.mu.Unlock()
		return coreerrors.ErrNotInRoom
	}
	to := d.resolveLocked(target)
	if to == nil || to.roomID != m.roomID || to.sender.ID() == from.ID() {
		d.mu.Unlock()
		return coreerrors.Wrapf(coreerrors.ErrUnresolvedTarget, coreerrors.CodeUnresolvedTarget, "target %q", target)
	}
	d.mu.Unlock()

	to.sender.Send(frame)
	metrics.IncrementCounter(metrics.GatewaySignalsRelayedTotal, nil)
	return nil
}

// Relay 旧版信令转发，目标为通配符时广播
func (d *Directory) Relay(from conn.Sender, target string, frame []byte) error {
	if d.IsBroadcast(target) {
		_, err := d.Broadcast(from, frame)
		return err
	}
	return d.SendTo(from, target, frame)
}

// IsBroadcast 目标是否为广播通配符
func (d *Directory) IsBroadcast(target string) bool {
	return strings.EqualFold(target, d.wildcard)
}

func (d *Directory) resolveLocked(target string) *member {
	if m, ok := d.members[target]; ok {
		return m
	}
	if connID, ok := d.peers[target]; ok {
		return d.members[connID]
	}
	return nil
}

// Resolve 把连接 ID 或对端 ID 解析为连接 ID
func (d *Directory) Resolve(target string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	m := d.resolveLocked(target)
	if m == nil {
		return "", false
	}
	return m.sender.ID(), true
}

// RoomOf 连接所在房间
func (d *Directory) RoomOf(connID string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.members[connID]
	if !ok {
		return "", false
	}
	return m.roomID, true
}

// Members 房间成员，按连接 ID 排序
func (d *Directory) Members(roomID string) []packet.PeerInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.othersLocked(roomID, "")
}

// Rooms 当前非空房间 ID
func (d *Directory) Rooms() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]string, 0, len(d.rooms))
	for id := range d.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ActiveRooms 当前非空房间数
func (d *Directory) ActiveRooms() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.rooms)
}
