// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package simulator answers register requests the way a Renogy charge
// controller does.
package simulator

import (
	"log/slog"
	"sync"

	"github.com/ffutop/renogy-monitor/internal/solar"
	"github.com/ffutop/renogy-monitor/modbus"
	"github.com/ffutop/renogy-monitor/modbus/rtu"
)

// Controller implements the station side of the protocol on top of a
// DataModel.
type Controller struct {
	Station byte
	model   *DataModel

	mu sync.Mutex
	// ackLimit caps the number of registers a write stores and
	// acknowledges. Zero means no cap.
	ackLimit int
}

// NewController creates a Controller answering as station.
func NewController(station byte, m *DataModel) *Controller {
	return &Controller{Station: station, model: m}
}

// Model returns the registers behind the controller.
func (c *Controller) Model() *DataModel {
	return c.model
}

// LimitWrites makes writes store and acknowledge at most n registers, like a
// controller rejecting the tail of a block. Zero removes the cap.
func (c *Controller) LimitWrites(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ackLimit = n
}

// Handle answers one request frame. It returns nil for frames that fail
// validation or are addressed to another station; a station stays silent on
// those.
func (c *Controller) Handle(aduRequest []byte) []byte {
	req, err := rtu.DecodeRequest(aduRequest)
	if err != nil {
		slog.Debug("Simulator dropping request", "err", err)
		return nil
	}
	if req.Station != c.Station {
		return nil
	}

	var resp rtu.Frame
	var code byte
	switch req.Function {
	case modbus.FuncCodeReadHoldingRegisters:
		resp, code = c.handleReadHoldingRegisters(req)
	case modbus.FuncCodeWriteMultipleRegisters:
		resp, code = c.handleWriteMultipleRegisters(req)
	default:
		code = modbus.ExceptionCodeIllegalFunction
	}
	if code != 0 {
		return rtu.EncodeException(c.Station, req.Function, code)
	}

	aduResponse, err := resp.Encode()
	if err != nil {
		return rtu.EncodeException(c.Station, req.Function, modbus.ExceptionCodeServerDeviceFailure)
	}
	return aduResponse
}

func (c *Controller) handleReadHoldingRegisters(req rtu.Request) (rtu.Frame, byte) {
	quantity := req.Count
	if quantity < 1 || quantity > rtu.MaxReadCount {
		return rtu.Frame{}, modbus.ExceptionCodeIllegalDataValue
	}
	// History addresses always answer with a whole day.
	if req.Address >= solar.RegHistoryBase {
		quantity = solar.HistoryWords
	}

	values, err := c.model.ReadHoldingRegisters(req.Address, quantity)
	if err != nil {
		return rtu.Frame{}, modbus.ExceptionCodeIllegalDataAddress
	}
	return rtu.Frame{Station: c.Station, Function: req.Function, Values: values}, 0
}

func (c *Controller) handleWriteMultipleRegisters(req rtu.Request) (rtu.Frame, byte) {
	if req.Count < 1 || req.Count > rtu.MaxWriteCount {
		return rtu.Frame{}, modbus.ExceptionCodeIllegalDataValue
	}

	values := req.Values
	c.mu.Lock()
	if c.ackLimit > 0 && len(values) > c.ackLimit {
		values = values[:c.ackLimit]
	}
	c.mu.Unlock()

	if err := c.model.WriteMultipleRegisters(req.Address, values); err != nil {
		return rtu.Frame{}, modbus.ExceptionCodeIllegalDataAddress
	}
	return rtu.Frame{Station: c.Station, Function: req.Function, Address: req.Address, Count: len(values)}, 0
}
