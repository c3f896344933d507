// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package local connects a register session to an in-process simulated
// controller instead of a serial device.
package local

import (
	"os"
	"sync"

	"github.com/ffutop/renogy-monitor/internal/simulator"
	"github.com/ffutop/renogy-monitor/transport/rtu"
)

// Link is an in-memory line to a simulated controller. Every written frame
// is handed to the controller and its reply is queued for reading. Reads
// report silence with os.ErrDeadlineExceeded without waiting.
type Link struct {
	handler  rtu.Handler
	baudRate int

	mu      sync.Mutex
	pending []byte
}

// NewLink creates a Link to controller timed for baudRate.
func NewLink(controller *simulator.Controller, baudRate int) *Link {
	return NewHandlerLink(controller.Handle, baudRate)
}

// NewHandlerLink creates a Link answering through handler.
func NewHandlerLink(handler rtu.Handler, baudRate int) *Link {
	return &Link{handler: handler, baudRate: baudRate}
}

// Write hands one complete frame to the controller.
func (l *Link) Write(b []byte) (int, error) {
	frame := append([]byte(nil), b...)
	reply := l.handler(frame)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending = append(l.pending, reply...)
	return len(b), nil
}

// Read returns queued reply bytes, or silence when there are none.
func (l *Link) Read(b []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.pending) == 0 {
		return 0, os.ErrDeadlineExceeded
	}
	n := copy(b, l.pending)
	l.pending = l.pending[n:]
	return n, nil
}

// BaudRate returns the baud rate used for timing.
func (l *Link) BaudRate() int {
	return l.baudRate
}

// Close drops any queued bytes.
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pending = nil
	return nil
}
