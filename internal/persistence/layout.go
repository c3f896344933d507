// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/ffutop/renogy-monitor/internal/solar"
)

// Snapshot record layout, all fields little endian:
//
//	Magic        : 4 bytes "SOLR"
//	Version      : 2 bytes
//	Reserved     : 2 bytes
//	Sequence     : 8 bytes, odd while a write is in progress
//	Time         : 8 bytes, unix nanoseconds
//	ArrayVolts   : 8 bytes float64
//	ArrayAmps    : 8 bytes float64
//	BatteryVolts : 8 bytes float64
//	BatteryAmps  : 8 bytes float64
//	LoadVolts    : 8 bytes float64
//	LoadAmps     : 8 bytes float64
//	ArrayWatts   : 4 bytes int32
//	SOC          : 4 bytes int32
const (
	recordMagic   = "SOLR"
	recordVersion = 1

	offVersion  = 4
	offSequence = 8
	offTime     = 16
	offFloats   = 24
	offWatts    = 72
	offSOC      = 76
	recordSize  = 80
)

func encodeRecord(dst []byte, s solar.Snapshot) {
	copy(dst, recordMagic)
	binary.LittleEndian.PutUint16(dst[offVersion:], recordVersion)
	binary.LittleEndian.PutUint64(dst[offTime:], uint64(s.Time.UnixNano()))
	floats := [...]float64{s.ArrayVolts, s.ArrayAmps, s.BatteryVolts, s.BatteryAmps, s.LoadVolts, s.LoadAmps}
	for i, f := range floats {
		binary.LittleEndian.PutUint64(dst[offFloats+8*i:], math.Float64bits(f))
	}
	binary.LittleEndian.PutUint32(dst[offWatts:], uint32(int32(s.ArrayWatts)))
	binary.LittleEndian.PutUint32(dst[offSOC:], uint32(int32(s.SOC)))
}

func decodeRecord(src []byte) (solar.Snapshot, bool) {
	if len(src) < recordSize || string(src[:len(recordMagic)]) != recordMagic ||
		binary.LittleEndian.Uint16(src[offVersion:]) != recordVersion {
		return solar.Snapshot{}, false
	}
	f := func(i int) float64 {
		return math.Float64frombits(binary.LittleEndian.Uint64(src[offFloats+8*i:]))
	}
	return solar.Snapshot{
		Time:         time.Unix(0, int64(binary.LittleEndian.Uint64(src[offTime:]))).UTC(),
		ArrayVolts:   f(0),
		ArrayAmps:    f(1),
		BatteryVolts: f(2),
		BatteryAmps:  f(3),
		LoadVolts:    f(4),
		LoadAmps:     f(5),
		ArrayWatts:   int(int32(binary.LittleEndian.Uint32(src[offWatts:]))),
		SOC:          int(int32(binary.LittleEndian.Uint32(src[offSOC:]))),
	}, true
}

func sequence(src []byte) uint64 {
	return binary.LittleEndian.Uint64(src[offSequence:])
}

func setSequence(dst []byte, seq uint64) {
	binary.LittleEndian.PutUint64(dst[offSequence:], seq)
}
