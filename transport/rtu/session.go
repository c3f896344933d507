// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ffutop/renogy-monitor/modbus"
	rtupacket "github.com/ffutop/renogy-monitor/modbus/rtu"
)

// Link is the byte stream a Session talks over. Read must give up with a
// timeout error once the line has been silent for a frame delay at BaudRate.
type Link interface {
	io.ReadWriter
	BaudRate() int
}

// Session runs register operations over a Link, one at a time.
type Session struct {
	link    Link
	timeout time.Duration

	mu        sync.Mutex
	assembler *rtupacket.Assembler
}

// NewSession returns a Session over link. timeout bounds the wait for a
// reply on top of the time needed to move the request and reply bytes.
func NewSession(link Link, timeout time.Duration) *Session {
	return &Session{
		link:      link,
		timeout:   timeout,
		assembler: rtupacket.NewAssembler(link),
	}
}

// ReadRegisters reads count holding registers starting at address. A reply
// declaring any other count is not the answer to this request and is
// dropped like a corrupted frame.
func (s *Session) ReadRegisters(ctx context.Context, station byte, address, count uint16) ([]uint16, error) {
	frame, err := s.send(ctx, rtupacket.ReadHoldingRegisters(station, address, count), int(count))
	if err != nil {
		return nil, err
	}
	return frame.Values, nil
}

// ReadDeclaredRegisters reads holding registers starting at address and
// returns as many as the station declares, which may differ from count.
// History addresses answer with a whole day whatever the count.
func (s *Session) ReadDeclaredRegisters(ctx context.Context, station byte, address, count uint16) ([]uint16, error) {
	frame, err := s.send(ctx, rtupacket.ReadHoldingRegisters(station, address, count), anyCount)
	if err != nil {
		return nil, err
	}
	if frame.Count != int(count) {
		slog.Debug("Register count differs from request", "station", station, "address", address, "requested", count, "received", frame.Count)
	}
	return frame.Values, nil
}

// WriteRegisters writes values starting at address and returns the number of
// registers the station acknowledged. A count below len(values) means the
// write was partial.
func (s *Session) WriteRegisters(ctx context.Context, station byte, address uint16, values []uint16) (int, error) {
	frame, err := s.send(ctx, rtupacket.WriteMultipleRegisters(station, address, values), anyCount)
	if err != nil {
		return 0, err
	}
	return frame.Count, nil
}

// anyCount accepts a reply whatever register count it declares.
const anyCount = -1

// send writes req and waits for the matching reply. Frames that fail
// validation or belong to another exchange are dropped, and so are read
// replies declaring other than wantCount registers unless wantCount is
// anyCount. If no valid reply arrives in time the result wraps
// modbus.ErrNoResponse together with the last rejection, if any.
func (s *Session) send(ctx context.Context, req rtupacket.Request, wantCount int) (rtupacket.Frame, error) {
	aduRequest, err := req.Encode()
	if err != nil {
		return rtupacket.Frame{}, fmt.Errorf("failed to encode request: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return rtupacket.Frame{}, err
	}

	deadline := time.Now().Add(s.timeout + rtupacket.TransmitTime(s.link.BaudRate(), len(aduRequest)+req.ExpectedResponseSize()))
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	s.drain()

	slog.Debug("send to modbus slave", "request", hex.EncodeToString(aduRequest))
	if _, err := s.link.Write(aduRequest); err != nil {
		return rtupacket.Frame{}, fmt.Errorf("failed to write request: %w", err)
	}

	var lastErr error
	for time.Now().Before(deadline) {
		aduResponse, err := s.assembler.Next(deadline)
		switch {
		case errors.Is(err, rtupacket.ErrRequestTimedOut):
			lastErr = err
			continue
		case errors.Is(err, modbus.ErrFrameTooLarge):
			slog.Debug("Dropping oversized frame", "station", req.Station, "err", err)
			lastErr = err
			continue
		case err != nil:
			return rtupacket.Frame{}, fmt.Errorf("%w: %w", modbus.ErrNoResponse, err)
		case aduResponse == nil:
			continue
		}
		slog.Debug("recv from modbus slave", "response", hex.EncodeToString(aduResponse))

		frame, err := rtupacket.Decode(aduResponse)
		var exception *modbus.ExceptionError
		switch {
		case errors.As(err, &exception):
			if frame.Station == req.Station && exception.Function == req.Function {
				return rtupacket.Frame{}, err
			}
			lastErr = err
		case err != nil:
			slog.Debug("Dropping invalid frame", "station", req.Station, "err", err)
			lastErr = err
		case frame.Station != req.Station || frame.Function != req.Function:
			lastErr = fmt.Errorf("%w: unexpected reply from station '%v' function '%v'", modbus.ErrInvalidFrame, frame.Station, frame.Function)
		case req.Function == modbus.FuncCodeReadHoldingRegisters && wantCount != anyCount && frame.Count != wantCount:
			slog.Debug("Dropping reply with wrong register count", "station", req.Station, "requested", wantCount, "received", frame.Count)
			lastErr = fmt.Errorf("%w: reply declares %v registers, requested %v", modbus.ErrInvalidFrame, frame.Count, wantCount)
		default:
			return frame, nil
		}
	}

	if lastErr == nil {
		return rtupacket.Frame{}, fmt.Errorf("%w: station '%v' silent", modbus.ErrNoResponse, req.Station)
	}
	return rtupacket.Frame{}, fmt.Errorf("%w: %w", modbus.ErrNoResponse, lastErr)
}

// drain discards whatever is left on the line from earlier exchanges, such
// as a late reply to a request that already timed out, so the next frame
// read can only be an answer to the next request.
func (s *Session) drain() {
	deadline := time.Now().Add(rtupacket.TransmitTime(s.link.BaudRate(), rtupacket.MaxSize))
	for {
		stale, err := s.assembler.Next(deadline)
		switch {
		case errors.Is(err, modbus.ErrFrameTooLarge):
			slog.Debug("Discarding stale oversized frame", "err", err)
			continue
		case err != nil:
			slog.Debug("Line not quiet before request", "err", err)
			return
		case stale == nil:
			return
		}
		slog.Debug("Discarding stale frame", "frame", hex.EncodeToString(stale))
	}
}
