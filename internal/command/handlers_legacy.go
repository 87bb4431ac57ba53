package command

import (
	coreerrors "dharana-gateway/internal/core/errors"
	"dharana-gateway/internal/packet"
)

// legacyFrame 取出旧版帧并绑定发送方 ID
// 连接首次出现的 sender 即为其对端 ID，之后的不同 sender 按协议违规丢弃。
// requireRoom 时先检查房间成员资格，被拒绝的帧不会绑定 ID。
func (d *Dispatcher) legacyFrame(ctx *CommandContext, requireRoom bool) (*packet.LegacyFrame, error) {
	f, ok := ctx.Frame.(*packet.LegacyFrame)
	if !ok {
		return nil, coreerrors.Newf(coreerrors.CodeInternal, "expected legacy frame, got %T", ctx.Frame)
	}
	if requireRoom {
		if _, in := d.rooms.RoomOf(ctx.Conn.ID()); !in {
			return nil, coreerrors.ErrNotInRoom
		}
	}
	if err := d.rooms.BindPeer(ctx.Conn, f.Sender); err != nil {
		return nil, err
	}
	return f, nil
}

// handleLegacyNewPeer 加入默认房间并原样广播
func (d *Dispatcher) handleLegacyNewPeer(ctx *CommandContext) error {
	f, err := d.legacyFrame(ctx, false)
	if err != nil {
		return err
	}
	if _, err := d.rooms.Join(ctx.Conn, d.config.DefaultRoom); err != nil {
		return err
	}
	_, err = d.rooms.Broadcast(ctx.Conn, f.Raw)
	return err
}

// handleLegacyRelay NEWPEERACK/OFFER/ANSWER/CANDIDATE/DATA/COMPLETE 原样转发
func (d *Dispatcher) handleLegacyRelay(ctx *CommandContext) error {
	if f, ok := ctx.Frame.(*packet.LegacyFrame); ok && f.Target == "" {
		return coreerrors.Newf(coreerrors.CodeMalformedFrame, "%s requires a target", f.Command)
	}
	f, err := d.legacyFrame(ctx, true)
	if err != nil {
		return err
	}
	return d.rooms.Relay(ctx.Conn, f.Target, f.Raw)
}

// handleLegacyDispose 原样广播后离开房间
// 旧版对端以 DISPOSE 作为离开通知，不再额外发送 peer_left；不在房间时为空操作
func (d *Dispatcher) handleLegacyDispose(ctx *CommandContext) error {
	if _, ok := d.rooms.RoomOf(ctx.Conn.ID()); !ok {
		return nil
	}
	f, err := d.legacyFrame(ctx, true)
	if err != nil {
		return err
	}
	if _, err := d.rooms.Broadcast(ctx.Conn, f.Raw); err != nil {
		return err
	}
	d.rooms.LeaveQuietly(ctx.Conn)
	return nil
}
