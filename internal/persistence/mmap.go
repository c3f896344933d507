// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/edsrzf/mmap-go"

	"github.com/ffutop/renogy-monitor/internal/solar"
)

var errReadOnly = errors.New("snapshot file is read-only")

// readRetries bounds how often Latest retries a record torn by a concurrent
// writer.
const readRetries = 10

// MmapStore keeps the latest snapshot in a memory-mapped file shared between
// the poller and readers in other processes.
type MmapStore struct {
	path     string
	writable bool

	mu   sync.Mutex
	file *os.File
	data mmap.MMap
}

// OpenMmap maps the snapshot file at path for writing, creating it if
// necessary.
func OpenMmap(path string) (*MmapStore, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open mmap file: %w", err)
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if fi.Size() != recordSize {
		if err := f.Truncate(recordSize); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to resize mmap file: %w", err)
		}
	}

	data, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap failed: %w", err)
	}
	return &MmapStore{path: path, writable: true, file: f, data: data}, nil
}

// OpenMmapReader maps an existing snapshot file read-only.
func OpenMmapReader(path string) (*MmapStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open mmap file: %w", err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if fi.Size() < recordSize {
		f.Close()
		return nil, fmt.Errorf("%w: %s holds %d bytes", ErrNoSnapshot, path, fi.Size())
	}

	data, err := mmap.MapRegion(f, recordSize, mmap.RDONLY, 0, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap failed: %w", err)
	}
	return &MmapStore{path: path, file: f, data: data}, nil
}

// Store replaces the mapped snapshot with s and flushes it to disk.
func (ms *MmapStore) Store(ctx context.Context, s solar.Snapshot) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.data == nil {
		return fmt.Errorf("mmap data is nil")
	}
	if !ms.writable {
		return errReadOnly
	}

	seq := sequence(ms.data)
	if seq%2 == 1 {
		seq++
	}
	setSequence(ms.data, seq+1)
	encodeRecord(ms.data, s)
	setSequence(ms.data, seq+2)
	return ms.data.Flush()
}

// Latest returns the mapped snapshot.
func (ms *MmapStore) Latest() (solar.Snapshot, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.data == nil {
		return solar.Snapshot{}, fmt.Errorf("mmap data is nil")
	}
	var buf [recordSize]byte
	for i := 0; i < readRetries; i++ {
		before := sequence(ms.data)
		copy(buf[:], ms.data)
		if before%2 == 0 && sequence(ms.data) == before {
			if before == 0 {
				return solar.Snapshot{}, ErrNoSnapshot
			}
			s, ok := decodeRecord(buf[:])
			if !ok {
				return solar.Snapshot{}, fmt.Errorf("%w: %s has no valid record", ErrNoSnapshot, ms.path)
			}
			return s, nil
		}
	}
	return solar.Snapshot{}, fmt.Errorf("snapshot in %s kept changing while reading", ms.path)
}

// Close unmaps and closes the file.
func (ms *MmapStore) Close() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	var errs []error
	if ms.data != nil {
		if ms.writable {
			if err := ms.data.Flush(); err != nil {
				errs = append(errs, err)
			}
		}
		if err := ms.data.Unmap(); err != nil {
			slog.Error("Failed to unmap", "path", ms.path, "err", err)
			errs = append(errs, err)
		}
		ms.data = nil
	}
	if ms.file != nil {
		errs = append(errs, ms.file.Close())
		ms.file = nil
	}
	return errors.Join(errs...)
}
