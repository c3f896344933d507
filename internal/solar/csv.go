// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package solar

import (
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeLayout is the timestamp layout of a CSV line, always in UTC.
const TimeLayout = "2006-01-02 15:04:05-07"

const csvFields = 9

// ErrMalformedLine is returned by ParseCSV for lines it cannot read.
var ErrMalformedLine = errors.New("malformed snapshot line")

// FormatCSV renders s as one CSV line terminated by a newline:
//
//	time,array_v,array_a,array_w,soc,bat_v,bat_a,load_v,load_a
func FormatCSV(s Snapshot) string {
	return fmt.Sprintf("%s,%.1f,%.2f,%d,%d,%.2f,%.2f,%.2f,%.2f\n",
		s.Time.UTC().Format(TimeLayout),
		s.ArrayVolts, s.ArrayAmps, s.ArrayWatts, s.SOC,
		s.BatteryVolts, s.BatteryAmps, s.LoadVolts, s.LoadAmps)
}

// ParseCSV reads a line produced by FormatCSV.
func ParseCSV(line string) (Snapshot, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.FieldsPerRecord = csvFields
	r.TrimLeadingSpace = true
	fields, err := r.Read()
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %w", ErrMalformedLine, err)
	}

	var s Snapshot
	if s.Time, err = time.Parse(TimeLayout, fields[0]); err != nil {
		return Snapshot{}, fmt.Errorf("%w: time: %w", ErrMalformedLine, err)
	}
	s.Time = s.Time.UTC()

	p := fieldParser{fields: fields}
	s.ArrayVolts = p.decimal(1)
	s.ArrayAmps = p.decimal(2)
	s.ArrayWatts = p.integer(3)
	s.SOC = p.integer(4)
	s.BatteryVolts = p.decimal(5)
	s.BatteryAmps = p.decimal(6)
	s.LoadVolts = p.decimal(7)
	s.LoadAmps = p.decimal(8)
	if p.err != nil {
		return Snapshot{}, p.err
	}
	return s, nil
}

// fieldParser keeps the first conversion error.
type fieldParser struct {
	fields []string
	err    error
}

func (p *fieldParser) decimal(i int) float64 {
	v, err := strconv.ParseFloat(p.fields[i], 64)
	p.fail(i, err)
	return v
}

func (p *fieldParser) integer(i int) int {
	v, err := strconv.Atoi(p.fields[i])
	p.fail(i, err)
	return v
}

func (p *fieldParser) fail(i int, err error) {
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("%w: field %d: %w", ErrMalformedLine, i, err)
	}
}
