// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package modbus holds the vocabulary shared by the RTU codec, the serial
// transport and the register session.
package modbus

import (
	"errors"
	"fmt"
)

// Function Codes
const (
	FuncCodeReadHoldingRegisters   = 0x03
	FuncCodeWriteMultipleRegisters = 0x10

	// exceptionBit is set in the function code of an exception response.
	exceptionBit = 0x80
)

// Exception Codes
const (
	ExceptionCodeIllegalFunction     = 0x01
	ExceptionCodeIllegalDataAddress  = 0x02
	ExceptionCodeIllegalDataValue    = 0x03
	ExceptionCodeServerDeviceFailure = 0x04
)

var (
	// ErrDeviceBusy is returned when the device stayed locked by another
	// process for every open attempt. Callers may retry later.
	ErrDeviceBusy = errors.New("modbus: device busy")
	// ErrDeviceUnavailable is returned for any other open failure.
	ErrDeviceUnavailable = errors.New("modbus: device unavailable")
	// ErrInvalidFrame is returned when a frame fails checksum validation.
	ErrInvalidFrame = errors.New("modbus: invalid frame")
	// ErrShortFrame is returned when a frame is below the protocol minimum.
	ErrShortFrame = errors.New("modbus: short frame")
	// ErrFrameTooLarge is returned when a frame overflowed the receive buffer.
	ErrFrameTooLarge = errors.New("modbus: frame too large")
	// ErrNoResponse is returned when no valid frame arrived in time.
	ErrNoResponse = errors.New("modbus: no response")
)

// ExceptionError is an exception response sent by the remote station.
type ExceptionError struct {
	Function byte
	Code     byte
}

func (e *ExceptionError) Error() string {
	var name string
	switch e.Code {
	case ExceptionCodeIllegalFunction:
		name = "illegal function"
	case ExceptionCodeIllegalDataAddress:
		name = "illegal data address"
	case ExceptionCodeIllegalDataValue:
		name = "illegal data value"
	case ExceptionCodeServerDeviceFailure:
		name = "server device failure"
	default:
		name = "unknown"
	}
	return fmt.Sprintf("modbus: exception '%v' (%s), function '%v'", e.Code, name, e.Function)
}

// IsException reports whether functionCode marks an exception response.
func IsException(functionCode byte) bool {
	return functionCode&exceptionBit != 0
}

// BaseFunction strips the exception bit from functionCode.
func BaseFunction(functionCode byte) byte {
	return functionCode &^ exceptionBit
}
