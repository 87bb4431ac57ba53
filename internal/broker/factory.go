package broker

import (
	"context"

	"dharana-gateway/internal/constants"
	coreerrors "dharana-gateway/internal/core/errors"
)

// BrokerType 消息代理类型
type BrokerType string

const (
	BrokerTypeMQTT   BrokerType = "mqtt"
	BrokerTypeRedis  BrokerType = "redis"
	BrokerTypeMemory BrokerType = "memory"
)

// BrokerConfig 消息代理配置
type BrokerConfig struct {
	Type         BrokerType
	NodeID       string
	SystemPrefix string

	MQTT  *MQTTBrokerConfig
	Redis *RedisBrokerConfig
}

// NewMessageBroker 按类型创建消息代理
func NewMessageBroker(ctx context.Context, config *BrokerConfig) (MessageBroker, error) {
	if config == nil {
		return nil, coreerrors.New(coreerrors.CodeConfigError, "broker config is required")
	}
	filter := TopicFilter{SystemPrefix: config.SystemPrefix}

	switch config.Type {
	case BrokerTypeMQTT, "":
		return NewMQTTBroker(ctx, config.MQTT, config.NodeID, filter)
	case BrokerTypeRedis:
		if config.Redis == nil {
			return nil, coreerrors.New(coreerrors.CodeConfigError, "redis config is required for redis broker")
		}
		return NewRedisBroker(ctx, config.Redis, config.NodeID, filter)
	case BrokerTypeMemory:
		return NewMemoryBroker(ctx, config.NodeID, filter), nil
	default:
		return nil, coreerrors.Newf(coreerrors.CodeConfigError, "unsupported broker type: %s", config.Type)
	}
}

// DefaultBrokerConfig 单节点内存模式
func DefaultBrokerConfig(nodeID string) *BrokerConfig {
	return &BrokerConfig{
		Type:         BrokerTypeMemory,
		NodeID:       nodeID,
		SystemPrefix: constants.DefaultSystemTopicPrefix,
	}
}
