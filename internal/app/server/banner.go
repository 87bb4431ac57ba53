package server

import (
	"fmt"
	"io"
	"net"
	"path/filepath"
	"strings"
	"time"

	"dharana-gateway/internal/broker"
	"dharana-gateway/internal/constants"
	"dharana-gateway/internal/utils"
	"dharana-gateway/internal/version"

	"github.com/fatih/color"
)

const (
	bannerWidth = 60
)

var (
	bannerCyan    = color.New(color.FgCyan).SprintFunc()
	bannerBlue    = color.New(color.FgBlue).SprintFunc()
	bannerMagenta = color.New(color.FgMagenta).SprintFunc()
	bannerBold    = color.New(color.Bold).SprintFunc()
	bannerGreen   = color.New(color.FgGreen).SprintFunc()
	bannerFaint   = color.New(color.Faint).SprintFunc()
)

// Endpoint 对外地址
type Endpoint struct {
	Label string
	URL   string
}

// DisplayStartupBanner 显示启动信息横幅
func (s *Server) DisplayStartupBanner(configPath string) {
	writeBanner(color.Output, s, configPath)
}

func writeBanner(w io.Writer, s *Server, configPath string) {
	reset := color.New(color.Reset).SprintFunc()
	displayLogo(w, reset)
	displayServerInfo(w, s, configPath)
	displayEndpoints(w, s.Endpoints())
	displayFooter(w, reset)
}

func displayLogo(w io.Writer, reset func(...interface{}) string) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s ___  _  _   _   ___    _   _  _   _ %s\n", bannerCyan(""), reset(""))
	fmt.Fprintf(w, "  %s|   \\| || | /_\\ | _ \\  /_\\ | \\| | /_\\ %s   %s%sDharana Gateway%s\n",
		bannerCyan(""), reset(""), bannerFaint(""), bannerBold(""), reset(""))
	fmt.Fprintf(w, "  %s| |) | __ |/ _ \\|   / / _ \\| .` |/ _ \\ %s\n", bannerBlue(""), reset(""))
	fmt.Fprintf(w, "  %s|___/|_||_/_/ \\_\\_|_\\/_/ \\_\\_|\\_/_/ \\_\\%s  %sVersion %s%s\n",
		bannerMagenta(""), reset(""), bannerFaint(""), version.GetShortVersion(), reset(""))
	fmt.Fprintln(w)
}

func displayServerInfo(w io.Writer, s *Server, configPath string) {
	fmt.Fprintln(w, bannerBold("  Gateway Information"))
	fmt.Fprintln(w, bannerFaint("  "+strings.Repeat("─", bannerWidth)))

	rows := []struct {
		label string
		value string
	}{
		{"Node ID", s.NodeID()},
		{"Config File", configPath},
		{"Start Time", time.Now().Format("2006-01-02 15:04:05")},
		{"Broker", formatBrokerInfo(&s.config.MessageBroker)},
		{"Retention", fmt.Sprintf("data=%v log=%v", s.config.Retention.Data, s.config.Retention.Log)},
		{"Log", formatLogInfo(&s.config.Log)},
	}
	for _, row := range rows {
		fmt.Fprintf(w, "  %-18s %s\n", bannerBold(row.label+":"), row.value)
	}
	fmt.Fprintln(w)
}

func displayEndpoints(w io.Writer, endpoints []Endpoint) {
	fmt.Fprintln(w, bannerBold("  Endpoints"))
	fmt.Fprintln(w, bannerFaint("  "+strings.Repeat("─", bannerWidth)))
	for _, ep := range endpoints {
		fmt.Fprintf(w, "  %-18s %s\n", bannerBold(ep.Label+":"), bannerGreen(ep.URL))
	}
	fmt.Fprintln(w)
}

func displayFooter(w io.Writer, reset func(...interface{}) string) {
	fmt.Fprintln(w, bannerFaint("  "+strings.Repeat("━", bannerWidth)))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %sGateway is running, press Ctrl+C to stop%s\n", bannerFaint(""), reset(""))
}

// Endpoints 本机与局域网的 WebSocket / MQTT 地址
func (s *Server) Endpoints() []Endpoint {
	lan := utils.LocalIPv4()

	// 未监听时（端口 0）按配置地址显示
	wsPort := portOf(s.Addr(), constants.DefaultWebSocketPort)
	if wsPort == "0" {
		wsPort = portOf(s.config.Server.ListenAddr, constants.DefaultWebSocketPort)
	}
	path := s.config.Server.WebSocketPath

	endpoints := []Endpoint{
		{Label: "WebSocket", URL: fmt.Sprintf("ws://localhost:%s%s", wsPort, path)},
		{Label: "WebSocket (LAN)", URL: fmt.Sprintf("ws://%s:%s%s", lan, wsPort, path)},
	}

	mb := s.config.MessageBroker
	if broker.BrokerType(mb.Type) == broker.BrokerTypeMQTT && mb.MQTT.ListenAddr != "" {
		mqttPort := portOf(mb.MQTT.ListenAddr, constants.DefaultMQTTPort)
		endpoints = append(endpoints,
			Endpoint{Label: "MQTT", URL: fmt.Sprintf("mqtt://localhost:%s", mqttPort)},
			Endpoint{Label: "MQTT (LAN)", URL: fmt.Sprintf("mqtt://%s:%s", lan, mqttPort)},
		)
	}

	if s.config.ManagementAPI.Enabled {
		endpoints = append(endpoints, Endpoint{Label: "Stats", URL: fmt.Sprintf("http://localhost:%s/stats", wsPort)})
	}
	endpoints = append(endpoints, Endpoint{Label: "Health", URL: fmt.Sprintf("http://localhost:%s/healthz", wsPort)})
	return endpoints
}

func portOf(addr string, fallback int) string {
	_, port, err := net.SplitHostPort(addr)
	if err != nil || port == "" {
		return fmt.Sprintf("%d", fallback)
	}
	return port
}

func formatBrokerInfo(config *MessageBrokerConfig) string {
	switch broker.BrokerType(config.Type) {
	case broker.BrokerTypeRedis:
		mode := "standalone"
		if config.Redis.ClusterMode {
			mode = "cluster"
		}
		return fmt.Sprintf("Redis %s (%s)", mode, strings.Join(config.Redis.Addrs, ","))
	case broker.BrokerTypeMemory:
		return "Memory"
	default:
		if config.MQTT.ListenAddr == "" {
			return "MQTT (embedded, no listener)"
		}
		return fmt.Sprintf("MQTT (embedded, %s)", config.MQTT.ListenAddr)
	}
}

func formatLogInfo(config *utils.LogConfig) string {
	if config.Output != constants.LogOutputFile {
		output := config.Output
		if output == "" {
			output = constants.LogOutputStdout
		}
		return fmt.Sprintf("%s (%s)", output, config.Level)
	}
	logFile := config.File
	if abs, err := filepath.Abs(logFile); err == nil {
		logFile = abs
	}
	return fmt.Sprintf("%s (%s)", logFile, config.Level)
}

