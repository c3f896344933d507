// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Command solarweb serves the charge controller status page.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/ffutop/renogy-monitor/internal/config"
	"github.com/ffutop/renogy-monitor/internal/device"
	"github.com/ffutop/renogy-monitor/internal/logging"
	"github.com/ffutop/renogy-monitor/internal/persistence"
	"github.com/ffutop/renogy-monitor/internal/web"
)

func main() {
	flags := pflag.NewFlagSet("solarweb", pflag.ExitOnError)
	configFile := flags.StringP("config", "c", "", "Path to config file")
	simulate := flags.Bool("simulate", false, "Read from a simulated controller")
	flags.String("web.listen", ":8080", "Listen address")
	flags.String("serial.device", "", "Serial device of the controller")
	flags.String("log.level", "info", "Log level (debug, info, warn, error)")
	flags.Parse(os.Args[1:])

	cfg, err := config.LoadConfig(*configFile, flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Log)

	slog.Info("Starting solar status page...", "listen", cfg.Web.Listen)

	// The latest snapshot is written by solarsnap. Without it the JSON
	// endpoint is simply not served.
	var latest web.LatestSnapshot
	if cfg.Snapshot.Path != "" {
		ms, err := persistence.OpenMmapReader(cfg.Snapshot.Path)
		if err != nil {
			slog.Warn("Latest snapshot unavailable", "path", cfg.Snapshot.Path, "err", err)
		} else {
			defer ms.Close()
			latest = ms
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handler := web.NewHandler(device.FromConfig(cfg.Serial, *simulate), latest)
	if err := web.ListenAndServe(ctx, cfg.Web.Listen, handler); err != nil {
		slog.Error("Web server stopped with error", "err", err)
		os.Exit(1)
	}
	slog.Info("Goodbye.")
}
