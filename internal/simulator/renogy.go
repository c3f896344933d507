// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package simulator

import (
	"github.com/ffutop/renogy-monitor/internal/solar"
)

// SampleModel is the product model reported by NewRenogy.
const SampleModel = "RNG-CTRL-RVR40"

// NewRenogy returns a controller answering as station with a plausible
// register image of a 12V system charging in MPPT mode.
func NewRenogy(station byte) *Controller {
	m := NewDataModel()
	Seed(m)
	return NewController(station, m)
}

// Seed fills m with the sample register image.
func Seed(m *DataModel) {
	m.Set(solar.RegMaxVoltAmp, 24<<8|40, 20<<8)
	m.Set(solar.RegModelFirst, ascii("  "+SampleModel)...)
	m.Set(solar.RegSoftwareVersionLo, 0x0001, 0x0205)
	m.Set(solar.RegHardwareVersionLo, 0x0001, 0x0100)
	m.Set(solar.RegSerialNumberLo, 0x1503, 0x0102)

	m.Set(solar.RegBatterySOC,
		87,       // SOC %
		132,      // 13.2 V
		345,      // 3.45 A
		25<<8|22, // controller 25C, battery 22C
		132,      // load 13.2 V
		120,      // load 1.20 A
		16,       // load 16 W
		186,      // array 18.6 V
		256,      // array 2.56 A
		47,       // charging 47 W
	)
	m.Set(solar.RegBatteryMinVoltsToday,
		124, 144, // 12.4 V, 14.4 V
		512, 230, // 5.12 A, 2.30 A
		92, 30,   // 92 W, 30 W
		18, 9,    // 18 Ah, 9 Ah
		220, 110, // 220 Wh, 110 Wh
		412,      // operating days
		3,        // over discharges
		120,      // full charges
	)
	m.Set(solar.RegTotalChargeAmpHours, 4521, 0)
	m.Set(solar.RegCumulativePowerGenerated, 0x81CD, 0x0001)
	m.Set(solar.RegCumulativePowerConsumption, 45000, 0)
	m.Set(solar.RegChargeState, 2)
	m.Set(solar.RegFaultBits, 0, 0)

	m.Set(solar.RegBatteryCapacity, 100, 12<<8|12, 2)

	for day := 0; day < 30; day++ {
		d := uint16(day)
		m.Set(uint16(solar.RegHistoryBase+day),
			120+d%5, 140+d%4,
			400+d*3, 200+d*2,
			900+d*10, 300+d*5,
			15+d%7, 8+d%3,
			200+d*4, 100+d*2,
		)
	}
}

// ascii packs s into registers, two characters each, high byte first.
func ascii(s string) []uint16 {
	if len(s)%2 != 0 {
		s += " "
	}
	words := make([]uint16, len(s)/2)
	for i := range words {
		words[i] = uint16(s[2*i])<<8 | uint16(s[2*i+1])
	}
	return words
}
