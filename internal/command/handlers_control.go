package command

import (
	"encoding/json"
	"time"

	coreerrors "dharana-gateway/internal/core/errors"
	corelog "dharana-gateway/internal/core/log"
	"dharana-gateway/internal/packet"
)

func controlFrame(ctx *CommandContext) (*packet.ControlFrame, error) {
	f, ok := ctx.Frame.(*packet.ControlFrame)
	if !ok {
		return nil, coreerrors.Newf(coreerrors.CodeInternal, "expected control frame, got %T", ctx.Frame)
	}
	return f, nil
}

func requireChannel(f *packet.ControlFrame) error {
	if f.Channel == "" {
		return coreerrors.Newf(coreerrors.CodeMalformedFrame, "%s requires a channel", f.Command)
	}
	return nil
}

func (d *Dispatcher) handleSubscribe(ctx *CommandContext) error {
	f, err := controlFrame(ctx)
	if err != nil {
		return err
	}
	if err := requireChannel(f); err != nil {
		return err
	}
	_, err = d.registry.Subscribe(ctx, ctx.Conn, f.Channel)
	return err
}

func (d *Dispatcher) handleUnsubscribe(ctx *CommandContext) error {
	f, err := controlFrame(ctx)
	if err != nil {
		return err
	}
	if err := requireChannel(f); err != nil {
		return err
	}
	_, err = d.registry.Unsubscribe(ctx, ctx.Conn, f.Channel)
	return err
}

// handlePublish 发布到代理，needsAck 时回复确认帧
func (d *Dispatcher) handlePublish(ctx *CommandContext) error {
	f, err := controlFrame(ctx)
	if err != nil {
		return err
	}
	if err := requireChannel(f); err != nil {
		return err
	}

	message := f.MessageText()
	ctx.Conn.Logger().WithField(corelog.FieldTopic, f.Channel).
		Debugf("Dispatcher: publish %s", corelog.Truncate(message, corelog.MaxPayloadLogLength))

	err = d.broker.Publish(ctx, f.Channel, []byte(message), d.config.RetainData)
	if f.NeedsAck {
		ctx.Conn.Send(packet.BuildAck(f.Channel))
	}
	if err != nil {
		return coreerrors.Wrapf(err, coreerrors.CodeUnavailable, "publish %s", f.Channel)
	}
	return nil
}

// handleDebugLog 把客户端日志整理成记录后发布
func (d *Dispatcher) handleDebugLog(ctx *CommandContext) error {
	f, err := controlFrame(ctx)
	if err != nil {
		return err
	}
	channel := f.Channel
	if channel == "" {
		channel = d.config.DebugChannel
	}

	record, err := d.buildLogRecord(ctx.Conn.ID(), f)
	if err != nil {
		return coreerrors.Wrap(err, coreerrors.CodeMalformedFrame, "invalid debug_log payload")
	}
	if err := d.broker.Publish(ctx, channel, record, d.config.RetainLog); err != nil {
		return coreerrors.Wrapf(err, coreerrors.CodeUnavailable, "publish log to %s", channel)
	}
	return nil
}

// buildLogRecord 组装 {message, timestamp, stackTrace, clientId}
// message 是 JSON 对象时其字段并入记录；帧上的 timestamp/stackTrace 优先
func (d *Dispatcher) buildLogRecord(connID string, f *packet.ControlFrame) ([]byte, error) {
	record := make(map[string]interface{})
	text := f.MessageText()

	var inner map[string]interface{}
	if err := json.Unmarshal([]byte(text), &inner); err == nil && inner != nil {
		for k, v := range inner {
			record[k] = v
		}
	} else {
		record["message"] = text
	}

	if f.Timestamp != "" {
		record["timestamp"] = f.Timestamp
	} else if _, ok := record["timestamp"]; !ok {
		record["timestamp"] = d.now().UTC().Format(time.RFC3339)
	}

	if len(f.StackTrace) > 0 && string(f.StackTrace) != "null" {
		record["stackTrace"] = f.StackTrace
	} else if _, ok := record["stackTrace"]; !ok {
		record["stackTrace"] = nil
	}

	if _, ok := record["clientId"]; !ok {
		record["clientId"] = connID
	}
	return json.Marshal(record)
}
