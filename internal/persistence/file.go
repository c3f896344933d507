// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/afero"

	"github.com/ffutop/renogy-monitor/internal/solar"
)

// CSVFile appends one line per snapshot to a text file. The file is opened
// for every write so it can be rotated underneath.
type CSVFile struct {
	fs   afero.Fs
	path string

	mu sync.Mutex
}

// NewCSVFile creates a CSVFile at path on fs.
func NewCSVFile(fs afero.Fs, path string) *CSVFile {
	return &CSVFile{
		fs:   fs,
		path: path,
	}
}

// Store appends s as a CSV line.
func (c *CSVFile) Store(ctx context.Context, s solar.Snapshot) error {
	return c.Append(solar.FormatCSV(s))
}

// Append appends line, which must end in a newline, and syncs the file.
func (c *CSVFile) Append(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := c.fs.OpenFile(c.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open csv file: %w", err)
	}
	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return fmt.Errorf("failed to write csv file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync csv file to disk: %w", err)
	}
	return f.Close()
}

// Close is a no-op; the file is closed after every write.
func (c *CSVFile) Close() error {
	return nil
}
