// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package solar maps the holding registers of a Renogy charge controller to
// physical quantities.
package solar

import (
	"context"
	"errors"
	"fmt"

	"github.com/ffutop/renogy-monitor/transport"
)

// Identity block.
const (
	RegMaxVoltAmp        = 0x000A // hi: max system voltage, lo: rated charge current
	RegMaxDischargeAType = 0x000B
	RegModelFirst        = 0x000C // ASCII, two characters per register, hi byte first
	RegModelLast         = 0x0013
	RegSoftwareVersionLo = 0x0014
	RegSoftwareVersionHi = 0x0015
	RegHardwareVersionLo = 0x0016
	RegHardwareVersionHi = 0x0017
	RegSerialNumberLo    = 0x0018
	RegSerialNumberHi    = 0x0019
)

// Dynamic block.
const (
	RegBatterySOC                 = 0x0100
	RegBatteryVolts               = 0x0101
	RegBatteryChargeAmps          = 0x0102
	RegTemperature                = 0x0103 // hi: controller, lo: battery
	RegLoadVolts                  = 0x0104
	RegLoadAmps                   = 0x0105
	RegLoadWatts                  = 0x0106
	RegArrayVolts                 = 0x0107
	RegArrayAmps                  = 0x0108
	RegChargingWatts              = 0x0109
	RegBatteryMinVoltsToday       = 0x010B
	RegBatteryMaxVoltsToday       = 0x010C
	RegMaxChargeAmpsToday         = 0x010D
	RegMaxDischargeAmpsToday      = 0x010E
	RegMaxChargeWattsToday        = 0x010F
	RegMaxDischargeWattsToday     = 0x0110
	RegChargeAmpHoursToday        = 0x0111
	RegDischargeAmpHoursToday     = 0x0112
	RegPowerGeneratedToday        = 0x0113
	RegPowerConsumedToday         = 0x0114
	RegTotalOperatingDays         = 0x0115
	RegTotalOverDischarges        = 0x0116
	RegTotalFullCharges           = 0x0117
	RegTotalChargeAmpHours        = 0x0118 // two registers
	RegCumulativePowerGenerated   = 0x011C // two registers
	RegCumulativePowerConsumption = 0x011E // two registers
	RegChargeState                = 0x0120 // lo byte
	RegFaultBits                  = 0x0121 // two registers, low word first
)

// Battery settings block.
const (
	RegBatteryCapacity = 0xE002
	RegSystemVoltage   = 0xE003 // hi: setting, lo: recognised
	RegBatteryType     = 0xE004
)

// RegHistoryBase is the address of today's history. Day n back is at
// RegHistoryBase+n; every history address answers with HistoryWords words.
const (
	RegHistoryBase = 0xF000
	HistoryWords   = 10
	MaxHistoryDays = 204
)

// Blocks read by this package. Counts are in registers.
const (
	identityBase  = 0x000A
	identityCount = 17
	dynamicBase   = 0x0100
	dynamicCount  = 35
	settingsBase  = 0xE001
	settingsCount = 35
)

// Fault bits of interest to the array working state.
const (
	FaultArrayShortCircuit = 0x100
	FaultArrayOverPower    = 0x080
)

var chargingStateNames = [...]string{"Idle", "Start", "MPPT", "EQU", "BST", "Float", "Limit", "Overcharge"}

var batteryTypeNames = [...]string{"User", "Flooded", "Sealed", "Gel", "Lithium"}

// ChargingStateName returns the name of a charge state register value.
func ChargingStateName(v uint16) string {
	return chargingStateNames[v&0x7]
}

// BatteryTypeName returns the name of a battery type register value.
func BatteryTypeName(v uint16) string {
	if i := int(v & 0x7); i < len(batteryTypeNames) {
		return batteryTypeNames[i]
	}
	return "Err"
}

// ErrShortRead is returned when a station answers with fewer registers than
// a block needs.
var ErrShortRead = errors.New("short register read")

// readBlock reads count registers at base. A reply with fewer registers
// fails instead of leaving the missing fields zero.
func readBlock(ctx context.Context, regs transport.Registers, name string, base, count uint16) (block, error) {
	values, err := regs.Read(ctx, base, count)
	if err != nil {
		return block{}, fmt.Errorf("failed to read %s registers: %w", name, err)
	}
	if len(values) < int(count) {
		return block{}, fmt.Errorf("%w: %s registers: got %d, want %d", ErrShortRead, name, len(values), count)
	}
	return block{base: base, values: values}, nil
}

// block is a contiguous run of registers read in one request.
type block struct {
	base   uint16
	values []uint16
}

func (b block) has(addr uint16) bool {
	return addr >= b.base && int(addr-b.base) < len(b.values)
}

func (b block) word(addr uint16) uint16 {
	if !b.has(addr) {
		return 0
	}
	return b.values[addr-b.base]
}

func (b block) hi(addr uint16) uint16 { return b.word(addr) >> 8 }

func (b block) lo(addr uint16) uint16 { return b.word(addr) & 0xFF }

// long returns the 32-bit value at addr and addr+1, low word first.
func (b block) long(addr uint16) uint32 {
	return uint32(b.word(addr+1))<<16 | uint32(b.word(addr))
}

// scaled returns the register at addr divided by div.
func (b block) scaled(addr uint16, div float64) float64 {
	return float64(b.word(addr)) / div
}

// temperature decodes a sign-magnitude byte: bit 7 is the sign.
func temperature(v uint16) int {
	t := int(v & 0x7F)
	if v&0x80 != 0 {
		return -t
	}
	return t
}
