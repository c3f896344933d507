// Copyright (c) 2025-2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Command solarsnap reads a snapshot from the charge controller and hands it
// to every configured destination, once or periodically.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"

	"github.com/ffutop/renogy-monitor/internal/config"
	"github.com/ffutop/renogy-monitor/internal/device"
	"github.com/ffutop/renogy-monitor/internal/logging"
	"github.com/ffutop/renogy-monitor/internal/persistence"
	"github.com/ffutop/renogy-monitor/internal/poller"
	"github.com/ffutop/renogy-monitor/internal/relay"
	"github.com/ffutop/renogy-monitor/internal/solar"
)

func main() {
	flags := pflag.NewFlagSet("solarsnap", pflag.ExitOnError)
	configFile := flags.StringP("config", "c", "", "Path to config file")
	simulate := flags.Bool("simulate", false, "Read from a simulated controller")
	printLine := flags.BoolP("print", "p", false, "Print the CSV line to stdout")
	flags.String("serial.device", "", "Serial device of the controller")
	flags.Int("serial.baud_rate", 9600, "Baud rate used for frame timing")
	flags.Duration("poll.interval", 0, "Poll interval; 0 polls once")
	flags.String("log.level", "info", "Log level (debug, info, warn, error)")
	flags.Parse(os.Args[1:])

	cfg, err := config.LoadConfig(*configFile, flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Log)

	sinks, err := openSinks(cfg)
	if err != nil {
		slog.Error("Failed to open destinations", "err", err)
		os.Exit(1)
	}
	defer sinks.Close()
	if *printLine {
		sinks = append(sinks, persistence.Named{Name: "stdout", Sink: stdout{}})
	}
	if len(sinks) == 0 {
		slog.Warn("No destinations configured, snapshots are only logged")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dev := device.FromConfig(cfg.Serial, *simulate)
	p := poller.NewPoller("solarsnap", dev, sinks, cfg.Poll.Interval)
	if err := p.Run(ctx); err != nil {
		slog.Error("Snapshot failed", "device", cfg.Serial.Device, "err", err)
		sinks.Close()
		os.Exit(1)
	}
}

// openSinks opens every destination named in cfg.
func openSinks(cfg *config.Config) (persistence.Multi, error) {
	var sinks persistence.Multi
	fail := func(err error) (persistence.Multi, error) {
		sinks.Close()
		return nil, err
	}

	if cfg.CSV.Path != "" {
		sinks = append(sinks, persistence.Named{Name: "csv", Sink: persistence.NewCSVFile(afero.NewOsFs(), cfg.CSV.Path)})
	}
	if cfg.Snapshot.Path != "" {
		ms, err := persistence.OpenMmap(cfg.Snapshot.Path)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, persistence.Named{Name: "mmap", Sink: ms})
	}
	if cfg.Database.Enabled() {
		store, err := persistence.OpenSQL(cfg.Database.Driver, cfg.Database.ConnString(), cfg.Database.Table, false)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, persistence.Named{Name: "database", Sink: store})
	}
	if cfg.MQTT.Enabled() {
		m, err := persistence.DialMQTT(cfg.MQTT)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, persistence.Named{Name: "mqtt", Sink: m})
	}
	if cfg.Influx.Enabled() {
		tags := map[string]string{"station": strconv.Itoa(int(cfg.Serial.Station))}
		sinks = append(sinks, persistence.Named{Name: "influx", Sink: persistence.NewInfluxSink(cfg.Influx, tags)})
	}
	if cfg.Relay.Enabled() {
		c, err := relay.NewClient(cfg.Relay)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, persistence.Named{Name: "relay", Sink: c})
	}
	return sinks, nil
}

type stdout struct{}

func (stdout) Store(ctx context.Context, s solar.Snapshot) error {
	_, err := fmt.Print(solar.FormatCSV(s))
	return err
}

func (stdout) Close() error { return nil }
