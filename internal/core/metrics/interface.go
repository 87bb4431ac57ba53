package metrics

// Metrics 指标收集接口
type Metrics interface {
	IncrementCounter(name string, labels map[string]string) error
	AddCounter(name string, value float64, labels map[string]string) error
	GetCounter(name string, labels map[string]string) (float64, error)

	SetGauge(name string, value float64, labels map[string]string) error
	AddGauge(name string, delta float64, labels map[string]string) error
	GetGauge(name string, labels map[string]string) (float64, error)

	// Snapshot 返回所有指标的当前值，键为带标签的指标名
	Snapshot() map[string]float64

	Close() error
}

// 网关指标名
const (
	GatewayConnections         = "gateway_connections"
	GatewayRooms               = "gateway_rooms"
	GatewayTopics              = "gateway_topics"
	GatewayFramesTotal         = "gateway_frames_total"
	GatewayFramesDroppedTotal  = "gateway_frames_dropped_total"
	GatewayDeliveriesTotal     = "gateway_deliveries_total"
	GatewayPublishErrorsTotal  = "gateway_publish_errors_total"
	GatewaySignalsRelayedTotal = "gateway_signals_relayed_total"
	GatewayCommandsTotal       = "gateway_commands_total"
)
