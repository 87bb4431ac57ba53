package constants

// 日志格式
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

// 日志输出
const (
	LogOutputStdout = "stdout"
	LogOutputStderr = "stderr"
	LogOutputFile   = "file"
)

// 启动与关闭提示
const (
	MsgStartingServer          = "Starting dharana gateway..."
	MsgServerStarted           = "Dharana gateway started successfully"
	MsgShuttingDownServer      = "Shutting down dharana gateway..."
	MsgServerShutdownCompleted = "Dharana gateway shutdown completed"
	MsgConfigFileNotFound      = "Config file %s not found, using default configuration"
	MsgConfigLoadedFrom        = "Configuration loaded from %s"
	MsgFailedToReadConfigFile  = "failed to read config file %s: %v"
	MsgFailedToParseConfigFile = "failed to parse config file %s: %v"
	MsgInvalidConfiguration    = "invalid configuration: %v"
)
