// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package solar

import (
	"context"
	"errors"
	"fmt"

	"github.com/ffutop/renogy-monitor/transport"
)

// ErrDayRange is returned for history days the controller does not keep.
var ErrDayRange = errors.New("history day out of range")

// History holds the battery statistics of one day. Day 0 is today.
type History struct {
	Day               int
	BatteryMinVolts   float64
	BatteryMaxVolts   float64
	MaxChargeAmps     float64
	MaxDischargeAmps  float64
	MaxChargeWatts    float64
	MaxDischargeWatts float64
	ChargeAmpHours    int
	DischargeAmpHours int
	PowerGeneratedKWh float64
	PowerConsumedKWh  float64
}

// ReadHistory reads the history of days day1 through day2 inclusive. A day2
// below day1 is raised to day1.
func ReadHistory(ctx context.Context, regs transport.Registers, day1, day2 int) ([]History, error) {
	if day2 < day1 {
		day2 = day1
	}
	if day1 < 0 || day2 >= MaxHistoryDays {
		return nil, fmt.Errorf("%w: %d..%d outside 0..%d", ErrDayRange, day1, day2, MaxHistoryDays-1)
	}

	history := make([]History, 0, day2-day1+1)
	for day := day1; day <= day2; day++ {
		// Each history address answers with a full day whatever the count.
		values, err := regs.Read(ctx, uint16(RegHistoryBase+day), HistoryWords)
		if err != nil {
			return nil, fmt.Errorf("failed to read history of day %d: %w", day, err)
		}
		if len(values) < HistoryWords {
			return nil, fmt.Errorf("%w: history of day %d: got %d, want %d", ErrShortRead, day, len(values), HistoryWords)
		}
		history = append(history, decodeHistory(day, values))
	}
	return history, nil
}

func decodeHistory(day int, v []uint16) History {
	return History{
		Day:               day,
		BatteryMinVolts:   float64(v[0]) / 10,
		BatteryMaxVolts:   float64(v[1]) / 10,
		MaxChargeAmps:     float64(v[2]) / 100,
		MaxDischargeAmps:  float64(v[3]) / 100,
		MaxChargeWatts:    float64(v[4]) / 10,
		MaxDischargeWatts: float64(v[5]) / 10,
		ChargeAmpHours:    int(v[6]),
		DischargeAmpHours: int(v[7]),
		PowerGeneratedKWh: float64(v[8]) / 1000,
		PowerConsumedKWh:  float64(v[9]) / 1000,
	}
}
