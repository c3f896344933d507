// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package relay

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ffutop/renogy-monitor/internal/persistence"
	"github.com/ffutop/renogy-monitor/internal/solar"
)

// MaxLine bounds a received line.
const MaxLine = 1024

// ErrEmptyInput is returned when the sender closed without a line.
var ErrEmptyInput = errors.New("no snapshot line received")

// Receive reads one snapshot line from r, appends it to file and stores the
// parsed snapshot in store. Either destination may be nil. A line that does
// not parse is rejected before anything is written.
func Receive(ctx context.Context, r io.Reader, file *persistence.CSVFile, store persistence.Sink) (solar.Snapshot, error) {
	line, err := bufio.NewReaderSize(io.LimitReader(r, MaxLine), MaxLine).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return solar.Snapshot{}, fmt.Errorf("failed to read snapshot line: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return solar.Snapshot{}, ErrEmptyInput
	}

	snap, err := solar.ParseCSV(line)
	if err != nil {
		return solar.Snapshot{}, err
	}
	if file != nil {
		if err := file.Append(line + "\n"); err != nil {
			return snap, err
		}
	}
	if store != nil {
		if err := store.Store(ctx, snap); err != nil {
			return snap, err
		}
	}
	return snap, nil
}
