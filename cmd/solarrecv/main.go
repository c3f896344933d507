// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Command solarrecv receives one snapshot line on standard input, appends it
// to the CSV log and inserts it into the database. It is meant to run as
// the sshd ForceCommand of the account solarsnap relays to.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"

	"github.com/ffutop/renogy-monitor/internal/config"
	"github.com/ffutop/renogy-monitor/internal/logging"
	"github.com/ffutop/renogy-monitor/internal/persistence"
	"github.com/ffutop/renogy-monitor/internal/relay"
)

func main() {
	flags := pflag.NewFlagSet("solarrecv", pflag.ExitOnError)
	configFile := flags.StringP("config", "c", "", "Path to config file")
	flags.String("csv.path", "", "CSV log to append to")
	flags.String("log.level", "info", "Log level (debug, info, warn, error)")
	flags.Parse(os.Args[1:])

	cfg, err := config.LoadConfig(*configFile, flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Log)

	if cfg.CSV.Path == "" && !cfg.Database.Enabled() {
		slog.Error("Neither csv.path nor a database is configured")
		os.Exit(2)
	}

	var file *persistence.CSVFile
	if cfg.CSV.Path != "" {
		file = persistence.NewCSVFile(afero.NewOsFs(), cfg.CSV.Path)
	}
	var store persistence.Sink
	if cfg.Database.Enabled() {
		sqlStore, err := persistence.OpenSQL(cfg.Database.Driver, cfg.Database.ConnString(), cfg.Database.Table, false)
		if err != nil {
			slog.Error("Failed to open database", "err", err)
			os.Exit(1)
		}
		defer sqlStore.Close()
		store = sqlStore
	}

	snap, err := relay.Receive(context.Background(), os.Stdin, file, store)
	if err != nil {
		slog.Error("Failed to receive snapshot", "err", err)
		if store != nil {
			store.Close()
		}
		os.Exit(1)
	}
	slog.Info("Snapshot received", "time", snap.Time, "soc", snap.SOC)
}
