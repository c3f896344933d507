// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"testing"

	goburrow "github.com/goburrow/modbus"
	"github.com/google/go-cmp/cmp"

	"github.com/ffutop/renogy-monitor/modbus"
)

// The goburrow packager is an independent RTU implementation; frames must
// match it byte for byte in both directions.

func newPackager(station byte) *goburrow.RTUClientHandler {
	h := goburrow.NewRTUClientHandler("/dev/null")
	h.SlaveId = station
	return h
}

func TestInteropRequestEncode(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		pdu  goburrow.ProtocolDataUnit
	}{
		{
			name: "read snapshot block",
			req:  ReadHoldingRegisters(1, 0x0100, 35),
			pdu: goburrow.ProtocolDataUnit{
				FunctionCode: goburrow.FuncCodeReadHoldingRegisters,
				Data:         []byte{0x01, 0x00, 0x00, 0x23},
			},
		},
		{
			name: "read history",
			req:  ReadHoldingRegisters(7, 0xF003, 10),
			pdu: goburrow.ProtocolDataUnit{
				FunctionCode: goburrow.FuncCodeReadHoldingRegisters,
				Data:         []byte{0xF0, 0x03, 0x00, 0x0A},
			},
		},
		{
			name: "write two registers",
			req:  WriteMultipleRegisters(1, 0xE004, []uint16{0x0002, 0x00A0}),
			pdu: goburrow.ProtocolDataUnit{
				FunctionCode: goburrow.FuncCodeWriteMultipleRegisters,
				Data:         []byte{0xE0, 0x04, 0x00, 0x02, 0x04, 0x00, 0x02, 0x00, 0xA0},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want, err := newPackager(tt.req.Station).Encode(&tt.pdu)
			if err != nil {
				t.Fatalf("reference Encode() error = %v", err)
			}
			got, err := tt.req.Encode()
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("Encode() mismatch (-reference +got):\n%s", diff)
			}
		})
	}
}

func TestInteropResponseDecode(t *testing.T) {
	pdu := &goburrow.ProtocolDataUnit{
		FunctionCode: modbus.FuncCodeReadHoldingRegisters,
		Data:         []byte{0x06, 0x00, 0x64, 0x00, 0x85, 0x01, 0x2C},
	}
	raw, err := newPackager(1).Encode(pdu)
	if err != nil {
		t.Fatalf("reference Encode() error = %v", err)
	}

	frame, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	want := Frame{
		Station:  1,
		Function: modbus.FuncCodeReadHoldingRegisters,
		Count:    3,
		Values:   []uint16{100, 133, 300},
	}
	if diff := cmp.Diff(want, frame); diff != "" {
		t.Errorf("Decode() mismatch (-want +got):\n%s", diff)
	}
}

func TestInteropResponseEncode(t *testing.T) {
	frame := Frame{
		Station:  1,
		Function: modbus.FuncCodeReadHoldingRegisters,
		Values:   []uint16{0x5247, 0x2D43},
	}
	raw, err := frame.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	h := newPackager(1)
	if err := h.Verify([]byte{1, 3, 0, 0x0C, 0, 2, 0, 0}, raw); err != nil {
		t.Fatalf("reference Verify() error = %v", err)
	}
	pdu, err := h.Decode(raw)
	if err != nil {
		t.Fatalf("reference Decode() error = %v", err)
	}
	if pdu.FunctionCode != modbus.FuncCodeReadHoldingRegisters {
		t.Errorf("function = %#x, want %#x", pdu.FunctionCode, modbus.FuncCodeReadHoldingRegisters)
	}
	if diff := cmp.Diff([]byte{0x04, 0x52, 0x47, 0x2D, 0x43}, pdu.Data); diff != "" {
		t.Errorf("data mismatch (-want +got):\n%s", diff)
	}
}
