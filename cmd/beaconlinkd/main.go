package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/beaconlink/beaconlink/internal/config"
	"github.com/beaconlink/beaconlink/internal/logging"
	"github.com/beaconlink/beaconlink/internal/tunnelserver"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("Panic recovered: %v\nStack trace:\n%s\n", r, debug.Stack())
			os.Exit(1)
		}
	}()

	cfg, err := config.LoadServerConfig()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logging.Configure(&cfg.Logging)
	logger := logging.GetLogger()
	defer logger.Close()

	logger.Info("Starting beaconlinkd on port %d, domain base %q", cfg.Port, cfg.DomainBase)

	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("Received signal %v, shutting down...", sig)
		cancel()
	}()

	srv := tunnelserver.NewServer(cfg)
	if err := srv.Run(ctx); err != nil {
		logger.Error("beaconlinkd exited with error: %v", err)
		os.Exit(1)
	}
	logger.Info("beaconlinkd stopped")
}
