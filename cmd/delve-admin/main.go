// Package main provides administration utilities for the game stores.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hollowspire/delve/internal/platform/config"
	"github.com/hollowspire/delve/internal/platform/otel"
	"github.com/hollowspire/delve/internal/tools/gameadmin"
)

func main() {
	cfg, err := gameadmin.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := otel.Setup(ctx, "delve-admin")
	if err != nil {
		config.Exitf("Error: setup telemetry: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			log.Printf("flush telemetry: %v", err)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	if err := gameadmin.Run(ctx, cfg, os.Stdout, os.Stderr); err != nil {
		config.Exitf("Error: %v", err)
	}
}
