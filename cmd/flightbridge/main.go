package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flightbridge/internal/bridge"
	"github.com/flightbridge/internal/config"
	"github.com/flightbridge/internal/logging"
)

// Version is set at build time with -ldflags "-X main.Version=..."
var Version = "dev"

func main() {
	configPath := flag.String("config", "", "configuration file (overrides FLIGHTBRIDGE_CONFIG)")
	savePort := flag.Int("save-udp-port", 0, "write the UDP listen port to the configuration file and exit")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(Version)
		return
	}

	if *savePort != 0 {
		target := config.ResolveFile(*configPath)
		if err := config.SaveUDPPort(target, *savePort); err != nil {
			log.Fatalf("Failed to save UDP port: %v", err)
		}
		log.Printf("Saved UDP port %d to %s", *savePort, target)
		return
	}

	// Load configuration
	cfg, err := config.LoadFrom(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(cfg.Logging)
	defer logger.Close()

	logger.Infof("Starting flightbridge %s: udp=%d http=%d(enabled=%t) driver=%s device=%d",
		Version, cfg.Network.UDP.Port, cfg.Network.HTTP.Port, cfg.Network.HTTP.Enabled, cfg.Device.Driver, cfg.Device.ID)

	b, err := bridge.New(cfg, Version, bridge.WithLogger(logger))
	if err != nil {
		logger.Errorf("Failed to initialise bridge: %v", err)
		os.Exit(1)
	}

	if err := b.Start(); err != nil {
		logger.Errorf("Failed to start bridge: %v", err)
		os.Exit(1)
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Infof("Received %s, shutting down", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := b.Stop(ctx); err != nil {
		logger.Errorf("Shutdown error: %v", err)
	}

	logger.Infof("Stopped")
}
