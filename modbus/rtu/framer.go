// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/grid-x/serial"

	"github.com/ffutop/renogy-monitor/modbus"
)

var ErrRequestTimedOut = errors.New("modbus: request timed out")

type state int

const (
	stateIdle state = iota
	stateReceiving
)

// Assembler accumulates bytes into frames delimited by line silence.
//
// The reader it wraps must return from Read after at most the frame delay
// with an error for which IsTimeout reports true when nothing arrived. A
// single Read may return several bytes; everything immediately available is
// part of the same cycle.
type Assembler struct {
	r     io.Reader
	state state

	buf      [MaxSize]byte
	n        int
	overflow int
	scratch  [MaxSize]byte
}

// NewAssembler returns an Assembler reading from r.
func NewAssembler(r io.Reader) *Assembler {
	return &Assembler{r: r}
}

// Next runs one receive cycle and returns the bytes received before the line
// went silent. It returns a nil frame if the line was silent from the start.
// Bytes beyond MaxSize are dropped and the frame is rejected with
// modbus.ErrFrameTooLarge once the sender stops. If bytes keep arriving past
// deadline, Next gives up with ErrRequestTimedOut.
func (a *Assembler) Next(deadline time.Time) ([]byte, error) {
	a.reset()
	for {
		n, err := a.r.Read(a.scratch[:])
		if n > 0 {
			a.state = stateReceiving
			a.append(a.scratch[:n])
		}
		switch {
		case err == nil:
		case IsTimeout(err), errors.Is(err, io.EOF) && a.n > 0:
			return a.complete()
		default:
			a.reset()
			return nil, err
		}
		if a.state == stateReceiving && !time.Now().Before(deadline) {
			a.reset()
			return nil, ErrRequestTimedOut
		}
	}
}

// Buffered returns the number of bytes held by the current cycle.
func (a *Assembler) Buffered() int {
	return a.n
}

func (a *Assembler) append(p []byte) {
	free := MaxSize - a.n
	if len(p) > free {
		a.overflow += len(p) - free
		p = p[:free]
	}
	a.n += copy(a.buf[a.n:], p)
}

func (a *Assembler) complete() ([]byte, error) {
	defer a.reset()
	if a.overflow > 0 {
		return nil, fmt.Errorf("%w: %d bytes beyond %d", modbus.ErrFrameTooLarge, a.overflow, MaxSize)
	}
	if a.n == 0 {
		return nil, nil
	}
	frame := make([]byte, a.n)
	copy(frame, a.buf[:a.n])
	return frame, nil
}

func (a *Assembler) reset() {
	a.n = 0
	a.overflow = 0
	a.state = stateIdle
}

// IsTimeout reports whether err means that the line stayed silent.
func IsTimeout(err error) bool {
	if errors.Is(err, serial.ErrTimeout) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
