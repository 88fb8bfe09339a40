package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/platewise/printrelay/internal/bridge"
	"github.com/platewise/printrelay/internal/config"
	"github.com/platewise/printrelay/internal/core"
	"github.com/platewise/printrelay/internal/transport"
)

func main() {
	configPath := flag.String("config", "bridge.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.LoadBridge(*configPath)
	if err != nil {
		log.Fatalf("[bridge] failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[bridge] invalid config: %v", err)
	}

	client := bridge.NewClient(cfg.RelayURL, cfg.HTTPTimeout)
	tcp := transport.NewTCP(cfg.DialTimeout, cfg.WriteTimeout)
	agent := bridge.NewAgent(cfg, client, tcp, core.TextEncoder{})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("[bridge] starting for printer %s at %s:%d, relay %s",
		cfg.PrinterID, cfg.PrinterAddr, cfg.PrinterPort, cfg.RelayURL)

	if err := agent.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("[bridge] agent stopped: %v", err)
	}
	log.Printf("[bridge] stopped")
}
