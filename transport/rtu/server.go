// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"context"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/ffutop/renogy-monitor/modbus"
	rtupacket "github.com/ffutop/renogy-monitor/modbus/rtu"
)

// Handler answers one request frame. A nil reply means the frame is not
// answered, as for a frame addressed to another station.
type Handler func(aduRequest []byte) (aduResponse []byte)

// Server answers requests on a line as a station does. It lets a simulated
// controller sit on a real or pseudo terminal.
type Server struct {
	link io.ReadWriter
}

// NewServer creates a Server on link. Reads on link must time out after a
// frame delay of silence, as a Port does.
func NewServer(link io.ReadWriter) *Server {
	return &Server{link: link}
}

// Serve answers frames until ctx is done or the link fails.
func (s *Server) Serve(ctx context.Context, handler Handler) error {
	assembler := rtupacket.NewAssembler(s.link)
	for {
		if ctx.Err() != nil {
			return nil
		}

		aduRequest, err := assembler.Next(time.Now().Add(time.Second))
		switch {
		case errors.Is(err, rtupacket.ErrRequestTimedOut), errors.Is(err, modbus.ErrFrameTooLarge):
			slog.Debug("Dropping request", "err", err)
			continue
		case err != nil:
			if ctx.Err() != nil {
				return nil
			}
			return err
		case aduRequest == nil:
			continue
		}

		slog.Debug("recv from modbus master", "request", hex.EncodeToString(aduRequest))
		aduResponse := handler(aduRequest)
		if aduResponse == nil {
			continue
		}
		slog.Debug("send to modbus master", "response", hex.EncodeToString(aduResponse))
		if _, err := s.link.Write(aduResponse); err != nil {
			return err
		}
	}
}
