// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Command csv2solardb loads a CSV snapshot log, or a unified diff of two
// logs, into the database. It is used to rebuild the table after an outage.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"

	"github.com/ffutop/renogy-monitor/internal/config"
	"github.com/ffutop/renogy-monitor/internal/logging"
	"github.com/ffutop/renogy-monitor/internal/persistence"
)

func usage(flags *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, "Usage: csv2solardb [-f] [-h host] [-p port] [-u user] [-P password] [-t table] csvfile\n")
	flags.PrintDefaults()
}

func main() {
	flags := pflag.NewFlagSet("csv2solardb", pflag.ExitOnError)
	configFile := flags.StringP("config", "c", "", "Path to config file")
	force := flags.BoolP("force", "f", false, "Replace rows whose time is already stored")
	flags.StringP("database.host", "h", "", "Database host")
	flags.IntP("database.port", "p", 0, "Database port")
	flags.StringP("database.name", "d", "", "Database name")
	flags.StringP("database.user", "u", "", "Database user")
	flags.StringP("database.password", "P", "", "Database password")
	flags.StringP("database.table", "t", "", "Database table")
	flags.String("log.level", "info", "Log level (debug, info, warn, error)")
	flags.Usage = func() { usage(flags) }
	flags.Parse(os.Args[1:])

	if flags.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "No csvfilename given")
		usage(flags)
		os.Exit(2)
	}

	cfg, err := config.LoadConfig(*configFile, flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Log)

	fs := afero.NewOsFs()
	f, err := fs.Open(flags.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Can't open %s for reading: %v\n", flags.Arg(0), err)
		usage(flags)
		os.Exit(2)
	}
	defer f.Close()

	store, err := persistence.OpenSQL(cfg.Database.Driver, cfg.Database.ConnString(), cfg.Database.Table, *force)
	if err != nil {
		slog.Error("Failed to open database", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stats, err := persistence.LoadCSV(ctx, f, store)
	slog.Info("Load finished", "file", flags.Arg(0), "stored", stats.Stored, "duplicates", stats.Duplicates,
		"malformed", stats.Malformed, "failed", stats.Failed)
	if err != nil {
		slog.Error("Load stopped", "err", err)
		store.Close()
		os.Exit(1)
	}
}
