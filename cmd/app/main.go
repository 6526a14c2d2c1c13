package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/di"
	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s mode=%s strategy=%s", cfg.Environment, cfg.Mode, cfg.Strategy.Kind)

	if cfg.Mode == "backtest" {
		runner, err := di.InitializeBacktest(cfg)
		if err != nil {
			log.Fatalf("backtest initialization failed: %v", err)
		}
		if err := runner.Run(context.Background()); err != nil {
			log.Fatalf("backtest failed: %v", err)
		}
		return
	}

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	log.Printf("deribit: %s currencies=%v", cfg.Deribit.WebSocketURL, cfg.Deribit.Currencies)

	// Run application (blocks until signal)
	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
