// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package logging installs the process-wide slog handler.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ffutop/renogy-monitor/internal/config"
)

// Level maps a configured level name to a slog level. Unknown names mean
// info.
func Level(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Setup installs a text handler writing to cfg.File, or to stderr when no
// file is configured. Commands whose stdout carries data must not log there.
func Setup(cfg config.LogConfig) {
	var w io.Writer = os.Stderr
	if cfg.File != "" && cfg.File != "-" {
		f, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file, falling back to stderr: %v\n", err)
		} else {
			w = f
		}
	}
	slog.SetDefault(New(w, cfg.Level))
}

// New returns a text logger writing to w at the named level.
func New(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: Level(level)}))
}
