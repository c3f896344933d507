// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"encoding/binary"
	"fmt"

	"github.com/ffutop/renogy-monitor/modbus"
	"github.com/ffutop/renogy-monitor/modbus/crc"
)

// InvalidLengthError reports a byte count that does not fit the frame.
type InvalidLengthError struct {
	Length byte
}

func (e *InvalidLengthError) Error() string {
	return fmt.Sprintf("invalid length received: %d", e.Length)
}

func (e *InvalidLengthError) Unwrap() error {
	return modbus.ErrInvalidFrame
}

// Request is a single register operation addressed to a station.
type Request struct {
	Station  byte
	Function byte
	Address  uint16
	Count    uint16
	// Values is the payload of a write, in host order.
	Values []uint16
}

// ReadHoldingRegisters builds a request for count registers at address.
func ReadHoldingRegisters(station byte, address, count uint16) Request {
	return Request{
		Station:  station,
		Function: modbus.FuncCodeReadHoldingRegisters,
		Address:  address,
		Count:    count,
	}
}

// WriteMultipleRegisters builds a request writing values starting at address.
func WriteMultipleRegisters(station byte, address uint16, values []uint16) Request {
	return Request{
		Station:  station,
		Function: modbus.FuncCodeWriteMultipleRegisters,
		Address:  address,
		Count:    uint16(len(values)),
		Values:   values,
	}
}

// Encode encodes the request in an RTU frame:
//
//	Station         : 1 byte
//	Function        : 1 byte
//	Address         : 2 bytes
//	Count           : 2 bytes
//	Byte count      : 1 byte (write only)
//	Values          : 2*Count bytes (write only)
//	CRC             : 2 bytes, low byte first
func (req Request) Encode() ([]byte, error) {
	var raw []byte
	switch req.Function {
	case modbus.FuncCodeReadHoldingRegisters:
		if req.Count < 1 || req.Count > MaxReadCount {
			return nil, fmt.Errorf("modbus: read count '%v' must be between 1 and %v", req.Count, MaxReadCount)
		}
		raw = make([]byte, readRequestSize)
	case modbus.FuncCodeWriteMultipleRegisters:
		if req.Count < 1 || req.Count > MaxWriteCount {
			return nil, fmt.Errorf("modbus: write count '%v' must be between 1 and %v", req.Count, MaxWriteCount)
		}
		if len(req.Values) != int(req.Count) {
			return nil, fmt.Errorf("modbus: write count '%v' does not match %v values", req.Count, len(req.Values))
		}
		byteCount := 2 * int(req.Count)
		raw = make([]byte, headerSize+1+byteCount+crcSize)
		raw[headerSize] = byte(byteCount)
		putWords(raw[headerSize+1:], req.Values)
	default:
		return nil, fmt.Errorf("modbus: function code '%v' not supported", req.Function)
	}

	raw[0] = req.Station
	raw[1] = req.Function
	binary.BigEndian.PutUint16(raw[2:], req.Address)
	binary.BigEndian.PutUint16(raw[4:], req.Count)
	appendCRC(raw)
	return raw, nil
}

// ExpectedResponseSize returns the size of a well-formed reply to req.
func (req Request) ExpectedResponseSize() int {
	if req.Function == modbus.FuncCodeWriteMultipleRegisters {
		return writeAckSize
	}
	return 3 + 2*int(req.Count) + crcSize
}

// DecodeRequest parses a request frame as a station on the bus receives it.
func DecodeRequest(raw []byte) (Request, error) {
	length := len(raw)
	if length < readRequestSize {
		return Request{}, fmt.Errorf("%w: request length '%v' does not meet minimum '%v'", modbus.ErrShortFrame, length, readRequestSize)
	}
	if err := checkCRC(raw); err != nil {
		return Request{}, err
	}
	req := Request{
		Station:  raw[0],
		Function: raw[1],
		Address:  binary.BigEndian.Uint16(raw[2:]),
		Count:    binary.BigEndian.Uint16(raw[4:]),
	}
	switch req.Function {
	case modbus.FuncCodeReadHoldingRegisters:
		if length != readRequestSize {
			return Request{}, fmt.Errorf("%w: read request length '%v'", modbus.ErrInvalidFrame, length)
		}
	case modbus.FuncCodeWriteMultipleRegisters:
		if length < headerSize+1+crcSize {
			return Request{}, fmt.Errorf("%w: write request length '%v'", modbus.ErrShortFrame, length)
		}
		byteCount := int(raw[headerSize])
		if byteCount != 2*int(req.Count) || headerSize+1+byteCount+crcSize != length {
			return Request{}, &InvalidLengthError{Length: raw[headerSize]}
		}
		req.Values = words(raw[headerSize+1 : headerSize+1+byteCount])
	}
	return req, nil
}

// Frame is a validated response frame.
type Frame struct {
	Station  byte
	Function byte
	// Address is only set for write acknowledgements.
	Address uint16
	// Count is the number of registers the station declares.
	Count int
	// Values holds the registers of a read response in host order.
	Values []uint16
}

// Decode validates raw and projects it into a Frame. The checksum is the last
// two bytes, low byte first. Read responses carry a byte count at offset 2;
// write acknowledgements echo address and count. An exception response
// decodes into its Frame together with an *modbus.ExceptionError.
func Decode(raw []byte) (Frame, error) {
	length := len(raw)
	// Minimum size (including station, function, byte count and CRC)
	if length < MinSize {
		return Frame{}, fmt.Errorf("%w: response length '%v' does not meet minimum '%v'", modbus.ErrShortFrame, length, MinSize)
	}
	if err := checkCRC(raw); err != nil {
		return Frame{}, err
	}

	frame := Frame{
		Station:  raw[0],
		Function: raw[1],
	}
	if modbus.IsException(frame.Function) {
		if length != ExceptionSize {
			return Frame{}, fmt.Errorf("%w: exception length '%v'", modbus.ErrInvalidFrame, length)
		}
		return frame, &modbus.ExceptionError{Function: modbus.BaseFunction(frame.Function), Code: raw[2]}
	}

	switch frame.Function {
	case modbus.FuncCodeWriteMultipleRegisters:
		if length != writeAckSize {
			return Frame{}, fmt.Errorf("%w: write acknowledgement length '%v'", modbus.ErrInvalidFrame, length)
		}
		frame.Address = binary.BigEndian.Uint16(raw[2:])
		frame.Count = int(binary.BigEndian.Uint16(raw[4:]))
	default:
		byteCount := int(raw[2])
		if byteCount%2 != 0 || 3+byteCount+crcSize != length {
			return Frame{}, &InvalidLengthError{Length: raw[2]}
		}
		frame.Count = byteCount / 2
		frame.Values = words(raw[3 : 3+byteCount])
	}
	return frame, nil
}

// Encode encodes the frame as a station would send it.
func (f Frame) Encode() ([]byte, error) {
	var raw []byte
	switch f.Function {
	case modbus.FuncCodeWriteMultipleRegisters:
		raw = make([]byte, writeAckSize)
		binary.BigEndian.PutUint16(raw[2:], f.Address)
		binary.BigEndian.PutUint16(raw[4:], uint16(f.Count))
	default:
		byteCount := 2 * len(f.Values)
		if 3+byteCount+crcSize > MaxSize {
			return nil, fmt.Errorf("modbus: length of data '%v' must not be bigger than '%v'", 3+byteCount+crcSize, MaxSize)
		}
		raw = make([]byte, 3+byteCount+crcSize)
		raw[2] = byte(byteCount)
		putWords(raw[3:], f.Values)
	}
	raw[0] = f.Station
	raw[1] = f.Function
	appendCRC(raw)
	return raw, nil
}

// EncodeException encodes an exception response.
func EncodeException(station, function, code byte) []byte {
	raw := []byte{station, function | 0x80, code, 0, 0}
	appendCRC(raw)
	return raw
}

// appendCRC fills the last two bytes of raw with the checksum of the rest.
func appendCRC(raw []byte) {
	length := len(raw)
	checksum := crc.Checksum(raw[:length-crcSize])
	raw[length-2] = byte(checksum)
	raw[length-1] = byte(checksum >> 8)
}

func checkCRC(raw []byte) error {
	length := len(raw)
	checksum := uint16(raw[length-1])<<8 | uint16(raw[length-2])
	if expected := crc.Checksum(raw[:length-crcSize]); checksum != expected {
		return fmt.Errorf("%w: crc '%04X' does not match expected '%04X'", modbus.ErrInvalidFrame, checksum, expected)
	}
	return nil
}

// words converts wire order (big endian) register bytes to host values.
func words(data []byte) []uint16 {
	values := make([]uint16, len(data)/2)
	for i := range values {
		values[i] = binary.BigEndian.Uint16(data[2*i:])
	}
	return values
}

func putWords(dst []byte, values []uint16) {
	for i, v := range values {
		binary.BigEndian.PutUint16(dst[2*i:], v)
	}
}
