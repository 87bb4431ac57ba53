package command

import (
	coreerrors "dharana-gateway/internal/core/errors"
	"dharana-gateway/internal/packet"
)

func signalFrame(ctx *CommandContext) (*packet.SignalFrame, error) {
	f, ok := ctx.Frame.(*packet.SignalFrame)
	if !ok {
		return nil, coreerrors.Newf(coreerrors.CodeInternal, "expected signal frame, got %T", ctx.Frame)
	}
	return f, nil
}

// handleJoinRoom 入房：回复 assign_id 与 joined_room，通知其他成员 peer_joined
func (d *Dispatcher) handleJoinRoom(ctx *CommandContext) error {
	f, err := signalFrame(ctx)
	if err != nil {
		return err
	}
	c := ctx.Conn
	roomID := f.RoomID
	if roomID == "" {
		roomID = d.config.DefaultRoom
	}
	if f.SimpleWebRTCID != "" {
		if err := d.rooms.BindPeer(c, f.SimpleWebRTCID); err != nil {
			return err
		}
	}

	res, err := d.rooms.Join(c, roomID)
	if err != nil {
		return err
	}
	c.Send(packet.BuildAssignID(c.ID()))
	c.Send(packet.BuildJoinedRoom(roomID, c.ID(), res.Others))
	if res.Joined {
		self := packet.PeerInfo{PeerID: c.ID(), SimpleWebRTCID: d.rooms.PeerOf(c.ID())}
		if _, err := d.rooms.Broadcast(c, packet.BuildPeerJoined(roomID, self)); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) handleLeaveRoom(ctx *CommandContext) error {
	d.rooms.Leave(ctx.Conn)
	return nil
}

// handleSignalRelay 转发 offer/answer/ice_candidate
// peerId 为空时发给房间内所有其他成员
func (d *Dispatcher) handleSignalRelay(ctx *CommandContext) error {
	f, err := signalFrame(ctx)
	if err != nil {
		return err
	}
	c := ctx.Conn
	roomID, ok := d.rooms.RoomOf(c.ID())
	if !ok {
		return coreerrors.ErrNotInRoom
	}
	if f.RoomID != "" && f.RoomID != roomID {
		return coreerrors.Newf(coreerrors.CodeProtocolError, "not a member of room %q", f.RoomID)
	}

	from := packet.PeerInfo{PeerID: c.ID(), SimpleWebRTCID: d.rooms.PeerOf(c.ID())}
	frame := packet.BuildRelayedSignal(f.Type, roomID, from, f.Payload)
	if f.PeerID == "" {
		_, err := d.rooms.Broadcast(c, frame)
		return err
	}
	return d.rooms.SendTo(c, f.PeerID, frame)
}
