// Copyright (c) 2025-2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package poller takes snapshots from the charge controller and hands them
// to the configured sinks.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.uber.org/atomic"

	"github.com/ffutop/renogy-monitor/internal/device"
	"github.com/ffutop/renogy-monitor/internal/persistence"
	"github.com/ffutop/renogy-monitor/internal/solar"
	"github.com/ffutop/renogy-monitor/transport"
)

// Poller reads a snapshot on every tick.
type Poller struct {
	Name     string
	Device   *device.Device
	Sink     persistence.Sink
	Interval time.Duration

	polls    atomic.Int64
	failures atomic.Int64
}

// NewPoller creates a Poller. An interval of zero polls once.
func NewPoller(name string, dev *device.Device, sink persistence.Sink, interval time.Duration) *Poller {
	return &Poller{
		Name:     name,
		Device:   dev,
		Sink:     sink,
		Interval: interval,
	}
}

// Poll takes one snapshot and stores it. The device is released before the
// sinks run. A failing sink does not keep the snapshot from the others; the
// failures are returned together with the snapshot.
func (p *Poller) Poll(ctx context.Context) (solar.Snapshot, error) {
	p.polls.Inc()

	var snap solar.Snapshot
	err := p.Device.Do(ctx, func(ctx context.Context, regs transport.Registers) error {
		var err error
		snap, err = solar.ReadSnapshot(ctx, regs)
		return err
	})
	if err != nil {
		p.failures.Inc()
		return solar.Snapshot{}, fmt.Errorf("failed to read snapshot: %w", err)
	}
	slog.Debug("Snapshot taken", "poller", p.Name, "time", snap.Time, "soc", snap.SOC, "array_w", snap.ArrayWatts)

	if p.Sink == nil {
		return snap, nil
	}
	if err := p.Sink.Store(ctx, snap); err != nil {
		p.failures.Inc()
		return snap, err
	}
	return snap, nil
}

// Run polls once, or on every interval until ctx is cancelled. In periodic
// mode failures are logged and polling continues.
func (p *Poller) Run(ctx context.Context) error {
	if p.Interval <= 0 {
		_, err := p.Poll(ctx)
		return err
	}

	slog.Info("Starting poller", "poller", p.Name, "interval", p.Interval)
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()
	for {
		if _, err := p.Poll(ctx); err != nil && ctx.Err() == nil {
			slog.Error("Poll failed", "poller", p.Name, "err", err)
		}
		select {
		case <-ctx.Done():
			slog.Info("Poller stopped", "poller", p.Name, "polls", p.polls.Load(), "failures", p.failures.Load())
			return nil
		case <-ticker.C:
		}
	}
}

// Stats returns the number of polls and of polls that failed.
func (p *Poller) Stats() (polls, failures int64) {
	return p.polls.Load(), p.failures.Load()
}
