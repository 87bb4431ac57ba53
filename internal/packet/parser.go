package packet

import (
	"bytes"
	"encoding/json"
	"strings"

	coreerrors "dharana-gateway/internal/core/errors"
)

// LegacySeparator 旧版信令字段分隔符
const LegacySeparator = "|"

// legacyMinSegments COMMAND|sender|target
const legacyMinSegments = 3

// Parser 帧解析器
type Parser struct {
	SelfTestMarker string
}

// Parse 识别帧格式并解码
//
// 以 { 开头且能解码为 JSON 对象的帧按 JSON 处理，其余按旧版格式处理。
func (p Parser) Parse(data []byte) (Frame, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, coreerrors.New(coreerrors.CodeMalformedFrame, "empty frame")
	}
	if p.SelfTestMarker != "" && bytes.HasPrefix(trimmed, []byte(p.SelfTestMarker)) {
		return &SelfTestFrame{Raw: data}, nil
	}

	if trimmed[0] == '{' {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &fields); err == nil {
			return parseJSON(trimmed, fields)
		}
	}
	return parseLegacy(data, trimmed)
}

func parseJSON(data []byte, fields map[string]json.RawMessage) (Frame, error) {
	switch {
	case fields["command"] != nil:
		var command string
		_ = json.Unmarshal(fields["command"], &command)
		if IsSignalRequest(command) {
			// 信令动词也可以放在 command 字段
			var f SignalFrame
			if err := json.Unmarshal(data, &f); err != nil {
				return nil, coreerrors.Wrap(err, coreerrors.CodeMalformedFrame, "invalid signal frame")
			}
			f.Type = command
			return &f, nil
		}
		var f ControlFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, coreerrors.Wrap(err, coreerrors.CodeMalformedFrame, "invalid control frame")
		}
		return &f, nil

	case fields["type"] != nil:
		var f SignalFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, coreerrors.Wrap(err, coreerrors.CodeMalformedFrame, "invalid signal frame")
		}
		return &f, nil

	case fields["channel"] != nil:
		// 早期客户端的发布格式 {channel, message, needsAck}
		var f ControlFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, coreerrors.Wrap(err, coreerrors.CodeMalformedFrame, "invalid publish frame")
		}
		f.Command = CommandPublish
		return &f, nil
	}
	return nil, coreerrors.New(coreerrors.CodeMalformedFrame, "json frame has neither command nor type")
}

func parseLegacy(raw, trimmed []byte) (Frame, error) {
	parts := strings.Split(string(trimmed), LegacySeparator)
	if len(parts) < legacyMinSegments {
		return nil, coreerrors.Newf(coreerrors.CodeMalformedFrame,
			"legacy frame needs at least %d segments, got %d", legacyMinSegments, len(parts))
	}

	f := &LegacyFrame{
		Command: strings.ToUpper(strings.TrimSpace(parts[0])),
		Sender:  strings.TrimSpace(parts[1]),
		Target:  strings.TrimSpace(parts[2]),
		Fields:  parts[3:],
		Raw:     raw,
	}
	if f.Command == "" || f.Sender == "" {
		return nil, coreerrors.New(coreerrors.CodeMalformedFrame, "legacy frame missing command or sender")
	}
	return f, nil
}
