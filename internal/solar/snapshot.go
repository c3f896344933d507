// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package solar

import (
	"context"
	"time"

	"github.com/ffutop/renogy-monitor/transport"
)

// Snapshot is the set of readings recorded on every poll.
type Snapshot struct {
	Time         time.Time `json:"time"`
	ArrayVolts   float64   `json:"array_v"`
	ArrayAmps    float64   `json:"array_a"`
	ArrayWatts   int       `json:"array_w"`
	SOC          int       `json:"soc"`
	BatteryVolts float64   `json:"bat_v"`
	BatteryAmps  float64   `json:"bat_a"`
	LoadVolts    float64   `json:"load_v"`
	LoadAmps     float64   `json:"load_a"`
}

// ReadSnapshot reads the dynamic block and returns the readings stamped
// with the current time in UTC.
func ReadSnapshot(ctx context.Context, regs transport.Registers) (Snapshot, error) {
	b, err := readBlock(ctx, regs, "dynamic", dynamicBase, dynamicCount)
	if err != nil {
		return Snapshot{}, err
	}
	return decodeSnapshot(b, time.Now().UTC()), nil
}

func decodeSnapshot(b block, now time.Time) Snapshot {
	return Snapshot{
		Time:         now,
		ArrayVolts:   b.scaled(RegArrayVolts, 10),
		ArrayAmps:    b.scaled(RegArrayAmps, 100),
		ArrayWatts:   int(b.word(RegChargingWatts)),
		SOC:          int(b.word(RegBatterySOC)),
		BatteryVolts: b.scaled(RegBatteryVolts, 10),
		BatteryAmps:  b.scaled(RegBatteryChargeAmps, 100),
		LoadVolts:    b.scaled(RegLoadVolts, 10),
		LoadAmps:     b.scaled(RegLoadAmps, 100),
	}
}
