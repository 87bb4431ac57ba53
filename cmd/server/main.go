package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"dharana-gateway/internal/app/server"
	corelog "dharana-gateway/internal/core/log"
)

func main() {
	var (
		configPath   = flag.String("config", "config.yaml", "Path to configuration file")
		exportConfig = flag.String("export-config", "", "Write the default configuration to this path and exit")
		showHelp     = flag.Bool("help", false, "Show help information")
	)
	flag.Parse()

	if *showHelp {
		fmt.Println("Dharana Gateway")
		fmt.Println("Usage: server [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  server                              # config.yaml in the current directory")
		fmt.Println("  server -config /etc/dharana/gateway.yaml")
		fmt.Println("  server -export-config gateway.yaml  # write defaults and exit")
		return
	}

	if *exportConfig != "" {
		if err := server.ExportConfigTemplate(*exportConfig); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to export config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Default configuration written to %s\n", *exportConfig)
		return
	}

	absConfigPath, err := filepath.Abs(*configPath)
	if err != nil {
		corelog.Fatalf("Failed to resolve config path: %v", err)
	}

	config, err := server.LoadConfig(absConfigPath)
	if err != nil {
		corelog.Fatalf("Failed to load configuration: %v", err)
	}

	srv, err := server.New(config, context.Background())
	if err != nil {
		corelog.Fatalf("Failed to build gateway: %v", err)
	}

	srv.DisplayStartupBanner(absConfigPath)

	// 阻塞到 SIGINT/SIGTERM，随后优雅关闭
	if err := srv.Run(); err != nil {
		corelog.Fatalf("Gateway exited with error: %v", err)
	}
	corelog.Infof("Dharana gateway exited gracefully")
}
