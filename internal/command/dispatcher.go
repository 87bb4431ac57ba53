// Package command 入站帧分发
//
// Dispatcher 解析每一帧，按格式和命令名在 CommandRegistry 中查找处理器，
// 经过中间件链执行。处理器返回的错误交给 session 记录，连接保持打开。
package command

import (
	"context"
	"time"

	"dharana-gateway/internal/broker"
	"dharana-gateway/internal/constants"
	coreerrors "dharana-gateway/internal/core/errors"
	"dharana-gateway/internal/packet"
	"dharana-gateway/internal/room"
	"dharana-gateway/internal/session"
	"dharana-gateway/internal/subscription"
)

// Config 分发器配置
type Config struct {
	// DefaultRoom 旧版 NEWPEER 与未指定房间的 join_room 使用的房间
	DefaultRoom string
	// DebugChannel debug_log 未指定频道时使用
	DebugChannel string
	// RetainData 普通发布是否保留
	RetainData bool
	// RetainLog debug_log 是否保留
	RetainLog bool
}

// DefaultConfig 默认配置：数据保留，日志不保留
func DefaultConfig() *Config {
	return &Config{
		DefaultRoom:  constants.DefaultRoomID,
		DebugChannel: constants.DefaultDebugChannel,
		RetainData:   true,
		RetainLog:    false,
	}
}

// Dispatcher 入站帧分发器，实现 session.FrameHandler
type Dispatcher struct {
	config   *Config
	parser   packet.Parser
	broker   broker.MessageBroker
	registry *subscription.Registry
	rooms    *room.Directory

	commands    *CommandRegistry
	middlewares []Middleware
	now         func() time.Time
}

var _ session.FrameHandler = (*Dispatcher)(nil)

// NewDispatcher 创建分发器并注册内置命令
func NewDispatcher(config *Config, parser packet.Parser, b broker.MessageBroker, registry *subscription.Registry, rooms *room.Directory) *Dispatcher {
	if config == nil {
		config = DefaultConfig()
	}
	if config.DefaultRoom == "" {
		config.DefaultRoom = constants.DefaultRoomID
	}
	if config.DebugChannel == "" {
		config.DebugChannel = constants.DefaultDebugChannel
	}
	d := &Dispatcher{
		config:   config,
		parser:   parser,
		broker:   b,
		registry: registry,
		rooms:    rooms,
		commands: NewCommandRegistry(),
		now:      time.Now,
	}
	d.registerBuiltins()
	return d
}

func (d *Dispatcher) registerBuiltins() {
	handlers := []CommandHandler{
		NewHandler(CategoryControl, packet.CommandSubscribe, d.handleSubscribe),
		NewHandler(CategoryControl, packet.CommandUnsubscribe, d.handleUnsubscribe),
		NewHandler(CategoryControl, packet.CommandPublish, d.handlePublish),
		NewHandler(CategoryControl, packet.CommandDebugLog, d.handleDebugLog),

		NewHandler(CategorySignal, packet.SignalJoinRoom, d.handleJoinRoom),
		NewHandler(CategorySignal, packet.SignalLeaveRoom, d.handleLeaveRoom),
		NewHandler(CategorySignal, packet.SignalOffer, d.handleSignalRelay),
		NewHandler(CategorySignal, packet.SignalAnswer, d.handleSignalRelay),
		NewHandler(CategorySignal, packet.SignalICECandidate, d.handleSignalRelay),

		NewHandler(CategoryLegacy, packet.LegacyNewPeer, d.handleLegacyNewPeer),
		NewHandler(CategoryLegacy, packet.LegacyDispose, d.handleLegacyDispose),
	}
	for _, verb := range []string{
		packet.LegacyNewPeerAck,
		packet.LegacyOffer,
		packet.LegacyAnswer,
		packet.LegacyCandidate,
		packet.LegacyData,
		packet.LegacyComplete,
	} {
		handlers = append(handlers, NewHandler(CategoryLegacy, verb, d.handleLegacyRelay))
	}

	for _, h := range handlers {
		if err := d.commands.Register(h); err != nil {
			panic(err)
		}
	}
}

// Commands 命令注册器，可注册额外命令
func (d *Dispatcher) Commands() *CommandRegistry {
	return d.commands
}

// Use 追加中间件，按添加顺序从外到内执行
func (d *Dispatcher) Use(mw ...Middleware) {
	d.middlewares = append(d.middlewares, mw...)
}

// HandleFrame 解析并处理一帧
func (d *Dispatcher) HandleFrame(ctx context.Context, c *session.Connection, data []byte) error {
	frame, err := d.parser.Parse(data)
	if err != nil {
		return err
	}

	cc := &CommandContext{Context: ctx, Conn: c, Frame: frame}
	switch f := frame.(type) {
	case *packet.SelfTestFrame:
		c.Logger().Debugf("Dispatcher: self-test frame discarded (%d bytes)", len(f.Raw))
		return nil
	case *packet.ControlFrame:
		cc.Category, cc.Name = CategoryControl, f.Command
	case *packet.SignalFrame:
		cc.Category, cc.Name = CategorySignal, f.Type
	case *packet.LegacyFrame:
		cc.Category, cc.Name = CategoryLegacy, f.Command
	default:
		return coreerrors.Newf(coreerrors.CodeInternal, "unhandled frame type %T", frame)
	}

	handler, ok := d.commands.GetHandler(cc.Category, cc.Name)
	if !ok {
		return coreerrors.Newf(coreerrors.CodeUnknownCommand, "unknown %s command %q", cc.Category, cc.Name)
	}
	return NewCommandPipeline(d.middlewares, handler).Execute(cc)
}
