// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/ffutop/renogy-monitor/internal/solar"
)

// LoadStats counts the outcome of a bulk load.
type LoadStats struct {
	Stored     int
	Duplicates int
	Malformed  int
	Failed     int
}

// LoadCSV stores every snapshot line read from r in sink. Input may be a
// unified diff of two CSV logs: headers, hunk markers and removed lines are
// skipped and added lines lose their '+'. Bad lines and rejected rows are
// counted and logged; only read errors and ctx cancellation stop the load.
func LoadCSV(ctx context.Context, r io.Reader, sink Sink) (LoadStats, error) {
	var stats LoadStats
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		line, ok := diffLine(scanner.Text())
		if !ok || strings.TrimSpace(line) == "" {
			continue
		}

		snap, err := solar.ParseCSV(line)
		if err != nil {
			slog.Warn("Skipping malformed line", "line", lineNo, "err", err)
			stats.Malformed++
			continue
		}
		switch err := sink.Store(ctx, snap); {
		case err == nil:
			stats.Stored++
		case errors.Is(err, ErrDuplicate):
			slog.Debug("Snapshot already stored", "line", lineNo, "time", snap.Time)
			stats.Duplicates++
		default:
			slog.Error("Failed to store snapshot", "line", lineNo, "err", err)
			stats.Failed++
		}
	}
	return stats, scanner.Err()
}

// diffLine strips unified diff decoration. It reports false for lines that
// carry no snapshot.
func diffLine(line string) (string, bool) {
	switch {
	case strings.HasPrefix(line, "---"), strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "@@"):
		return "", false
	case strings.HasPrefix(line, "-"):
		return "", false
	case strings.HasPrefix(line, "+"):
		return line[1:], true
	}
	return line, true
}
