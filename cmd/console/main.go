// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/accelstream/internal/app"
	"github.com/relabs-tech/accelstream/internal/config"
)

func main() {
	configPath := flag.String("config", "accel_config.txt", "configuration file")
	reads := flag.Int("reads", 100, "values to read per axis")
	flag.Parse()

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()

	logger, err := app.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()
	logger.Info("starting accelerometer console (direct session)")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunConsole(ctx, cfg, *reads, os.Stdout, logger); err != nil {
		logger.Fatalf("fatal: %v", err)
	}
}
