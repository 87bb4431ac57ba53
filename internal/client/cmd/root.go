// Package cmd 网关客户端命令行
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dharana-gateway/internal/client"
	"dharana-gateway/internal/utils"
	"dharana-gateway/internal/version"

	"github.com/spf13/cobra"
)

// 全局标志
var (
	serverURL    string
	configFile   string
	debugChannel string
	logLevel     string
	remoteLog    bool
	timeout      time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "dharana",
	Short: "Dharana gateway client",
	Long: `Command line client for the Dharana WebSocket/MQTT gateway.

Publishes and logs issued while the gateway is unreachable are queued and
delivered in order once the connection comes back.

Examples:
  dharana subscribe sensors/temp
  dharana publish sensors/temp 21.5
  dharana log --level warn "disk almost full"`,
	Version:       version.GetVersion(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// NewRootCommand 根命令，供测试使用
func NewRootCommand() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "", "Gateway URL (e.g. ws://localhost:3000/)")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file path")
	rootCmd.PersistentFlags().StringVar(&debugChannel, "debug-channel", "", "Channel prefix for forwarded logs")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Local log level: debug/info/warn/error")
	rootCmd.PersistentFlags().BoolVar(&remoteLog, "remote-log", false, "Forward local logs to the gateway as debug_log")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "How long publish/log wait for delivery")

	rootCmd.AddCommand(subscribeCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig 加载配置并应用命令行覆盖
func loadConfig() (*client.ClientConfig, error) {
	config, err := client.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if serverURL != "" {
		config.Server.URL = serverURL
	}
	if debugChannel != "" {
		config.DebugChannel = debugChannel
	}
	if logLevel != "" {
		config.Log.Level = logLevel
	}
	if remoteLog {
		config.RemoteLog.Enabled = true
	}
	return config, nil
}

// session 一次命令的客户端运行环境
type session struct {
	ctx    context.Context
	cancel context.CancelFunc
	client *client.Client
	hook   *client.RemoteLogHook
}

// startSession 配置日志、创建客户端并开始连接
// forwardLogs 为 true 时总是挂载远程日志钩子
func startSession(forwardLogs bool) (*session, error) {
	config, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := utils.InitLogger(&config.Log); err != nil {
		return nil, fmt.Errorf("failed to configure logging: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	s := &session{ctx: ctx, cancel: cancel}
	s.client = client.NewClient(ctx, config, client.NewWebSocketDialer())

	if forwardLogs || (remoteLog && config.RemoteLog.Enabled) {
		s.hook = client.NewRemoteLogHook(s.client, config.DebugChannel, config.RemoteLog.Extended)
		utils.Logger.AddHook(s.hook)
	}

	s.client.Start()
	return s, nil
}

func (s *session) close() {
	if s.hook != nil {
		s.hook.SetEnabled(false)
	}
	_ = s.client.Close()
	s.cancel()
}

// flush 等待排队内容送达
func (s *session) flush() error {
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	if err := s.client.Flush(ctx); err != nil {
		messages, logs := s.client.QueueLengths()
		return fmt.Errorf("not delivered within %s (%d messages, %d logs still queued): %w", timeout, messages, logs, err)
	}
	return nil
}
