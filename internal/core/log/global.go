package log

import "os"

func Debug(args ...interface{}) { Default().Debug(args...) }
func Info(args ...interface{})  { Default().Info(args...) }
func Warn(args ...interface{})  { Default().Warn(args...) }
func Error(args ...interface{}) { Default().Error(args...) }

func Debugf(format string, args ...interface{}) { Default().Debugf(format, args...) }
func Infof(format string, args ...interface{})  { Default().Infof(format, args...) }
func Warnf(format string, args ...interface{})  { Default().Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { Default().Errorf(format, args...) }

// Fatalf 记录错误并退出进程，仅用于 main
func Fatalf(format string, args ...interface{}) {
	Default().Errorf(format, args...)
	os.Exit(1)
}

func WithField(key string, value interface{}) Logger {
	return Default().WithField(key, value)
}

func WithFields(fields map[string]interface{}) Logger {
	return Default().WithFields(fields)
}

func WithError(err error) Logger {
	return Default().WithError(err)
}
