// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

const (
	// MinSize is station, function, byte count (or exception code) and CRC.
	MinSize = 5
	// MaxSize bounds the raw frame buffer.
	MaxSize = 256

	ExceptionSize = 5

	readRequestSize = 8
	writeAckSize    = 8
	headerSize      = 6
	crcSize         = 2

	// MaxReadCount and MaxWriteCount are the register limits that fit MaxSize.
	MaxReadCount  = 125
	MaxWriteCount = 123
)
