// Copyright (c) 2025-2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Command solarsim answers as a simulated charge controller on a serial
// device, for testing the other commands against a null-modem cable or a
// pseudo terminal pair.
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
	"github.com/ffutop/renogy-monitor/internal/logging"
	"github.com/ffutop/renogy-monitor/internal/simulator"
	"github.com/ffutop/renogy-monitor/transport/rtu"
)

func main() {
	flags := pflag.NewFlagSet("solarsim", pflag.ExitOnError)
	configFile := flags.StringP("config", "c", "", "Path to config file")
	flags.String("serial.device", "", "Serial device to answer on")
	flags.Uint8("serial.station", 1, "Station address to answer as")
	flags.String("log.level", "info", "Log level (debug, info, warn, error)")
	flags.Parse(os.Args[1:])

	cfg, err := config.LoadConfig(*configFile, flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Log)

	port, err := rtu.Open(cfg.Serial)
	if err != nil {
		slog.Error("Failed to open serial device", "device", cfg.Serial.Device, "err", err)
		os.Exit(1)
	}
	defer port.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	controller := simulator.NewRenogy(cfg.Serial.Station)
	slog.Info("Simulating controller", "device", cfg.Serial.Device, "station", cfg.Serial.Station, "model", simulator.SampleModel)
	if err := rtu.NewServer(port).Serve(ctx, controller.Handle); err != nil {
		slog.Error("Server stopped with error", "err", err)
		port.Close()
		os.Exit(1)
	}
	slog.Info("Goodbye.")
}
