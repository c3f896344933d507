// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Command modbuscli is an interactive register console for the charge
// controller.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/ffutop/renogy-monitor/internal/config"
	"github.com/ffutop/renogy-monitor/internal/console"
	"github.com/ffutop/renogy-monitor/internal/device"
	"github.com/ffutop/renogy-monitor/internal/logging"
)

func main() {
	flags := pflag.NewFlagSet("modbuscli", pflag.ExitOnError)
	configFile := flags.StringP("config", "c", "", "Path to config file")
	simulate := flags.Bool("simulate", false, "Talk to a simulated controller")
	flags.String("serial.device", "", "Serial device of the controller")
	flags.Uint8("serial.station", 1, "Station address")
	flags.String("log.level", "info", "Log level (debug, info, warn, error)")
	flags.Parse(os.Args[1:])

	cfg, err := config.LoadConfig(*configFile, flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	c := console.New(device.FromConfig(cfg.Serial, *simulate), os.Stdin, os.Stdout)
	if err := c.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
