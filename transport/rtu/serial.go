// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/grid-x/serial"

	"github.com/ffutop/renogy-monitor/internal/config"
	"github.com/ffutop/renogy-monitor/modbus"
	rtupacket "github.com/ffutop/renogy-monitor/modbus/rtu"
)

const (
	// lineBaudRate is the physical line speed. The configured baud rate only
	// drives frame timing.
	lineBaudRate = 9600

	defaultOpenTries  = 5
	defaultRetryDelay = time.Second
)

// errLocked is returned by lockDevice when another process holds the device.
var errLocked = errors.New("device locked by another process")

// deviceLock holds the exclusive lock on the device and its original line
// settings. Close restores the settings and drops the lock.
type deviceLock interface {
	Close() error
}

// Port is an exclusively held serial device.
type Port struct {
	// Serial line configuration.
	serial.Config

	timingBaud int
	openTries  int
	retryDelay time.Duration

	mu   sync.Mutex
	port io.ReadWriteCloser
	lock deviceLock

	lockDevice func(path string) (deviceLock, error)
	openPort   func(cfg *serial.Config) (io.ReadWriteCloser, error)
	sleep      func(d time.Duration)
}

// NewPort allocates a Port for cfg without touching the device.
func NewPort(cfg config.SerialConfig) *Port {
	p := &Port{
		Config: serial.Config{
			Address:  cfg.Device,
			BaudRate: lineBaudRate,
			DataBits: 8,
			StopBits: 1,
			Parity:   "N",
		},
		openTries:  cfg.OpenTries,
		retryDelay: cfg.RetryDelay,
		lockDevice: lockDevice,
		openPort: func(cfg *serial.Config) (io.ReadWriteCloser, error) {
			return serial.Open(cfg)
		},
		sleep: time.Sleep,
	}
	if p.openTries <= 0 {
		p.openTries = defaultOpenTries
	}
	if p.retryDelay <= 0 {
		p.retryDelay = defaultRetryDelay
	}
	if cfg.RS485 {
		p.RS485.Enabled = true
		p.RS485.DelayRtsBeforeSend = cfg.DelayRtsBeforeSend
		p.RS485.DelayRtsAfterSend = cfg.DelayRtsAfterSend
		p.RS485.RtsHighDuringSend = cfg.RtsHighDuringSend
		p.RS485.RtsHighAfterSend = cfg.RtsHighAfterSend
		p.RS485.RxDuringTx = cfg.RxDuringTx
	}
	p.setTimingBaud(cfg.BaudRate)
	return p
}

// Open opens the device named in cfg. See Port.Open.
func Open(cfg config.SerialConfig) (*Port, error) {
	p := NewPort(cfg)
	if err := p.Open(); err != nil {
		return nil, err
	}
	return p, nil
}

// Open locks the device and switches it to raw 8N1 mode. While another
// process holds the device, Open retries a bounded number of times and then
// fails with modbus.ErrDeviceBusy. Any other failure is returned at once,
// wrapped in modbus.ErrDeviceUnavailable. Opening an open Port is a no-op.
func (p *Port) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.open()
}

// open opens the port if it is not open. Caller must hold the mutex.
func (p *Port) open() error {
	if p.port != nil {
		return nil
	}

	var lock deviceLock
	for attempt := 1; ; attempt++ {
		var err error
		lock, err = p.lockDevice(p.Address)
		if err == nil {
			break
		}
		if !errors.Is(err, errLocked) {
			return fmt.Errorf("%w: could not open %s: %w", modbus.ErrDeviceUnavailable, p.Address, err)
		}
		if attempt >= p.openTries {
			return fmt.Errorf("%w: %s still locked after %d attempts", modbus.ErrDeviceBusy, p.Address, attempt)
		}
		slog.Debug("Device locked, retrying", "device", p.Address, "attempt", attempt)
		p.sleep(p.retryDelay)
	}

	port, err := p.openPort(&p.Config)
	if err != nil {
		p.release(lock)
		return fmt.Errorf("%w: could not open %s: %w", modbus.ErrDeviceUnavailable, p.Address, err)
	}
	p.port = port
	p.lock = lock
	slog.Debug("Serial device opened", "device", p.Address, "timing_baud", p.timingBaud, "idle_timeout", p.Timeout)
	return nil
}

// Close restores the original line settings and releases the device.
// Cleanup failures are logged and never returned.
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.close()
	return nil
}

// close closes the port if it is open. Caller must hold the mutex.
func (p *Port) close() {
	if p.port != nil {
		if err := p.port.Close(); err != nil {
			slog.Debug("Failed to close serial port", "device", p.Address, "err", err)
		}
		p.port = nil
	}
	if p.lock != nil {
		p.release(p.lock)
		p.lock = nil
	}
}

func (p *Port) release(lock deviceLock) {
	if err := lock.Close(); err != nil {
		slog.Debug("Failed to restore serial device", "device", p.Address, "err", err)
	}
}

// BaudRate returns the baud rate used for frame timing.
func (p *Port) BaudRate() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.timingBaud
}

// SetTimingBaud changes the baud rate used for frame timing and recomputes
// the idle timeout. An open port is reopened to apply it; the device lock is
// kept throughout.
func (p *Port) SetTimingBaud(baudRate int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.setTimingBaud(baudRate)
	if p.port == nil {
		return nil
	}
	if err := p.port.Close(); err != nil {
		slog.Debug("Failed to close serial port", "device", p.Address, "err", err)
	}
	port, err := p.openPort(&p.Config)
	if err != nil {
		p.port = nil
		p.release(p.lock)
		p.lock = nil
		return fmt.Errorf("%w: could not reopen %s: %w", modbus.ErrDeviceUnavailable, p.Address, err)
	}
	p.port = port
	return nil
}

func (p *Port) setTimingBaud(baudRate int) {
	if baudRate <= 0 {
		baudRate = lineBaudRate
	}
	p.timingBaud = baudRate
	p.Timeout = rtupacket.FrameDelay(baudRate)
}

// Read reads from the line. It returns serial.ErrTimeout once the line has
// been silent for the idle timeout.
func (p *Port) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.port == nil {
		return 0, fmt.Errorf("%w: %s is not open", modbus.ErrDeviceUnavailable, p.Address)
	}
	return p.port.Read(b)
}

// Write writes to the line.
func (p *Port) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.port == nil {
		return 0, fmt.Errorf("%w: %s is not open", modbus.ErrDeviceUnavailable, p.Address)
	}
	return p.port.Write(b)
}
