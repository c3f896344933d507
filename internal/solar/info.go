// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package solar

import (
	"context"
	"fmt"
	"strings"

	"github.com/ffutop/renogy-monitor/transport"
)

// Info is the full controller status shown on the status page.
type Info struct {
	Model           string
	HardwareVersion string
	SoftwareVersion string
	SerialNumber    string

	ArrayVolts          float64
	ArrayAmps           float64
	ArrayWatts          int
	ArrayWorkingState   string
	PowerGeneratedToday int

	BatteryVolts    float64
	BatteryAmps     float64
	ChargingState   string
	BatteryType     string
	BatteryTemp     int
	SOC             int
	BatteryCapacity int

	LoadVolts float64
	LoadAmps  float64
	LoadWatts int

	DeviceTemp              int
	SystemVoltageSetting    int
	SystemVoltageRecognised int
	MaxSystemVolts          int
	RatedChargeAmps         int

	Today History

	TotalOperatingDays       int
	TotalOverDischarges      int
	TotalFullCharges         int
	TotalChargeAmpHours      uint32
	CumulativePowerGenerated uint32
	CumulativePowerConsumed  uint32

	FaultBits uint32
}

// ReadInfo reads the identity, dynamic and battery settings blocks. Any
// failed read fails the whole call.
func ReadInfo(ctx context.Context, regs transport.Registers) (Info, error) {
	blocks := []struct {
		name  string
		base  uint16
		count uint16
	}{
		{"identity", identityBase, identityCount},
		{"dynamic", dynamicBase, dynamicCount},
		{"settings", settingsBase, settingsCount},
	}
	read := make([]block, len(blocks))
	for i, b := range blocks {
		blk, err := readBlock(ctx, regs, b.name, b.base, b.count)
		if err != nil {
			return Info{}, err
		}
		read[i] = blk
	}
	return decodeInfo(read[0], read[1], read[2]), nil
}

func decodeInfo(id, dyn, set block) Info {
	info := Info{
		Model:           model(id),
		HardwareVersion: version(id, RegHardwareVersionLo, RegHardwareVersionHi),
		SoftwareVersion: version(id, RegSoftwareVersionLo, RegSoftwareVersionHi),
		SerialNumber: fmt.Sprintf("%d%d%d%d",
			id.hi(RegSerialNumberLo), id.lo(RegSerialNumberLo),
			id.hi(RegSerialNumberHi), id.lo(RegSerialNumberHi)),

		ArrayVolts:          dyn.scaled(RegArrayVolts, 10),
		ArrayAmps:           dyn.scaled(RegArrayAmps, 100),
		ArrayWatts:          int(dyn.word(RegChargingWatts)),
		PowerGeneratedToday: int(dyn.word(RegPowerGeneratedToday)),

		BatteryVolts:    dyn.scaled(RegBatteryVolts, 10),
		BatteryAmps:     dyn.scaled(RegBatteryChargeAmps, 100),
		ChargingState:   ChargingStateName(dyn.lo(RegChargeState)),
		BatteryType:     BatteryTypeName(set.word(RegBatteryType)),
		BatteryTemp:     temperature(dyn.lo(RegTemperature)),
		SOC:             int(dyn.word(RegBatterySOC)),
		BatteryCapacity: int(set.word(RegBatteryCapacity)),

		LoadVolts: dyn.scaled(RegLoadVolts, 10),
		LoadAmps:  dyn.scaled(RegLoadAmps, 100),
		LoadWatts: int(dyn.word(RegLoadWatts)),

		DeviceTemp:              temperature(dyn.hi(RegTemperature)),
		SystemVoltageSetting:    int(set.hi(RegSystemVoltage)),
		SystemVoltageRecognised: int(set.lo(RegSystemVoltage)),
		MaxSystemVolts:          int(id.hi(RegMaxVoltAmp)),
		RatedChargeAmps:         int(id.lo(RegMaxVoltAmp)),

		Today: History{
			BatteryMinVolts:   dyn.scaled(RegBatteryMinVoltsToday, 10),
			BatteryMaxVolts:   dyn.scaled(RegBatteryMaxVoltsToday, 10),
			MaxChargeAmps:     dyn.scaled(RegMaxChargeAmpsToday, 100),
			MaxDischargeAmps:  dyn.scaled(RegMaxDischargeAmpsToday, 100),
			MaxChargeWatts:    float64(dyn.word(RegMaxChargeWattsToday)),
			MaxDischargeWatts: float64(dyn.word(RegMaxDischargeWattsToday)),
			ChargeAmpHours:    int(dyn.word(RegChargeAmpHoursToday)),
			DischargeAmpHours: int(dyn.word(RegDischargeAmpHoursToday)),
			PowerGeneratedKWh: dyn.scaled(RegPowerGeneratedToday, 1000),
			PowerConsumedKWh:  dyn.scaled(RegPowerConsumedToday, 1000),
		},

		TotalOperatingDays:       int(dyn.word(RegTotalOperatingDays)),
		TotalOverDischarges:      int(dyn.word(RegTotalOverDischarges)),
		TotalFullCharges:         int(dyn.word(RegTotalFullCharges)),
		TotalChargeAmpHours:      dyn.long(RegTotalChargeAmpHours),
		CumulativePowerGenerated: dyn.long(RegCumulativePowerGenerated),
		CumulativePowerConsumed:  dyn.long(RegCumulativePowerConsumption),

		FaultBits: dyn.long(RegFaultBits),
	}
	info.ArrayWorkingState = ArrayWorkingState(info.FaultBits)
	return info
}

// ArrayWorkingState describes the array from the controller fault bits.
func ArrayWorkingState(faults uint32) string {
	switch {
	case faults&FaultArrayShortCircuit != 0:
		return "Short Circuit"
	case faults&FaultArrayOverPower != 0:
		return "Over Power"
	}
	return "Normal"
}

func model(id block) string {
	var sb strings.Builder
	for addr := uint16(RegModelFirst); addr <= RegModelLast; addr++ {
		sb.WriteByte(byte(id.hi(addr)))
		sb.WriteByte(byte(id.lo(addr)))
	}
	return strings.TrimSpace(strings.TrimRight(sb.String(), "\x00"))
}

// version formats a three byte version held in the low byte of lo and both
// bytes of hi.
func version(id block, lo, hi uint16) string {
	return fmt.Sprintf("%d.%d.%d", id.lo(lo), id.hi(hi), id.lo(hi))
}
