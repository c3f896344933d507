// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package crc

import (
	"github.com/sigurn/crc16"
)

var table = crc16.MakeTable(crc16.CRC16_MODBUS)

// CRC is a running CRC-16/MODBUS (reflected, poly 0x8005, init 0xFFFF).
type CRC struct {
	sum uint16
}

// Reset restarts the computation with the initial value.
func (crc *CRC) Reset() *CRC {
	crc.sum = crc16.Init(table)
	return crc
}

// PushBytes feeds data into the running checksum.
func (crc *CRC) PushBytes(data []byte) *CRC {
	crc.sum = crc16.Update(crc.sum, data, table)
	return crc
}

// Value returns the checksum of everything pushed since Reset.
func (crc *CRC) Value() uint16 {
	return crc16.Complete(crc.sum, table)
}

// Checksum returns the CRC-16/MODBUS of data.
func Checksum(data []byte) uint16 {
	return crc16.Checksum(data, table)
}

// Verify reports whether sum is the checksum of data.
func Verify(data []byte, sum uint16) bool {
	return Checksum(data) == sum
}
