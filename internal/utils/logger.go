package utils

import (
	"fmt"
	"io"
	"os"
	"time"

	"dharana-gateway/internal/constants"
	corelog "dharana-gateway/internal/core/log"

	"github.com/sirupsen/logrus"
)

// Logger 进程级 logrus 实例
var Logger *logrus.Logger

func init() {
	Logger = logrus.New()
	Logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	Logger.SetOutput(os.Stdout)
	Logger.SetLevel(logrus.InfoLevel)
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
	Output string `json:"output" yaml:"output"`
	File   string `json:"file" yaml:"file"`
}

// InitLogger 按配置设置 Logger，并接管 corelog 的默认输出
func InitLogger(config *LogConfig) error {
	if config == nil {
		corelog.SetDefaultFromLogrus(Logger)
		return nil
	}

	if config.Level != "" {
		level, err := logrus.ParseLevel(config.Level)
		if err != nil {
			return fmt.Errorf("invalid log level: %s", config.Level)
		}
		Logger.SetLevel(level)
	}

	if config.Format == constants.LogFormatText {
		Logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	}

	var out io.Writer = os.Stdout
	switch config.Output {
	case constants.LogOutputStderr:
		out = os.Stderr
	case constants.LogOutputFile:
		if config.File == "" {
			return fmt.Errorf("log output is file but no file path configured")
		}
		file, err := os.OpenFile(config.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %v", err)
		}
		out = file
	}
	Logger.SetOutput(out)

	corelog.SetDefaultFromLogrus(Logger)
	return nil
}

func Infof(format string, args ...interface{})  { corelog.Infof(format, args...) }
func Warnf(format string, args ...interface{})  { corelog.Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { corelog.Errorf(format, args...) }
