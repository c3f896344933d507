// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package device opens the charge controller for the length of one job.
// The serial device is shared with other processes, so it is never held
// between jobs.
package device

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/ffutop/renogy-monitor/internal/config"
	"github.com/ffutop/renogy-monitor/internal/simulator"
	"github.com/ffutop/renogy-monitor/transport"
	"github.com/ffutop/renogy-monitor/transport/local"
	"github.com/ffutop/renogy-monitor/transport/rtu"
)

// Conn is an open line to the controller.
type Conn interface {
	rtu.Link
	io.Closer
}

// Dialer opens a Conn.
type Dialer func() (Conn, error)

// Serial dials the serial device in cfg.
func Serial(cfg config.SerialConfig) Dialer {
	return func() (Conn, error) {
		port, err := rtu.Open(cfg)
		if err != nil {
			return nil, err
		}
		return port, nil
	}
}

// Simulated dials an in-process controller.
func Simulated(controller *simulator.Controller, baudRate int) Dialer {
	return func() (Conn, error) {
		return local.NewLink(controller, baudRate), nil
	}
}

// Device runs jobs against one station.
type Device struct {
	dial    Dialer
	station byte
	timeout time.Duration
	pause   time.Duration
}

// New returns a Device for the station in cfg reached through dial.
func New(dial Dialer, cfg config.SerialConfig) *Device {
	return &Device{
		dial:    dial,
		station: cfg.Station,
		timeout: cfg.Timeout,
		pause:   cfg.RqstPause,
	}
}

// FromConfig returns the Device described by cfg. With simulate set, jobs
// run against an in-process controller instead of the serial device.
func FromConfig(cfg config.SerialConfig, simulate bool) *Device {
	if simulate {
		slog.Info("Using simulated controller", "station", cfg.Station)
		return New(Simulated(simulator.NewRenogy(cfg.Station), cfg.BaudRate), cfg)
	}
	return New(Serial(cfg), cfg)
}

// Station returns the station address jobs are sent to.
func (d *Device) Station() byte {
	return d.station
}

// Do opens the line, runs fn against the station registers and closes the
// line again, whatever fn returns.
func (d *Device) Do(ctx context.Context, fn func(ctx context.Context, regs transport.Registers) error) error {
	conn, err := d.dial()
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Close(); err != nil {
			slog.Debug("Failed to close device", "err", err)
		}
	}()

	session := rtu.NewSession(conn, d.timeout)
	regs := &paced{Registers: transport.NewStation(session, d.station), pause: d.pause}
	return fn(ctx, regs)
}

// paced keeps a minimum pause between consecutive requests.
type paced struct {
	transport.Registers
	pause time.Duration
	last  time.Time
}

func (p *paced) wait(ctx context.Context) error {
	if p.last.IsZero() || p.pause <= 0 {
		return nil
	}
	d := p.pause - time.Since(p.last)
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *paced) Read(ctx context.Context, address, count uint16) ([]uint16, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	defer func() { p.last = time.Now() }()
	return p.Registers.Read(ctx, address, count)
}

func (p *paced) ReadDeclared(ctx context.Context, address, count uint16) ([]uint16, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	defer func() { p.last = time.Now() }()
	return transport.ReadDeclared(ctx, p.Registers, address, count)
}

func (p *paced) Write(ctx context.Context, address uint16, values []uint16) (int, error) {
	if err := p.wait(ctx); err != nil {
		return 0, err
	}
	defer func() { p.last = time.Now() }()
	return p.Registers.Write(ctx, address, values)
}
