// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"context"
	"sync"

	"github.com/ffutop/renogy-monitor/internal/solar"
)

// Memory keeps snapshots in memory (non-persistent).
type Memory struct {
	mu        sync.Mutex
	snapshots []solar.Snapshot
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Store(ctx context.Context, s solar.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.snapshots = append(m.snapshots, s)
	return nil
}

// Latest returns the most recent snapshot.
func (m *Memory) Latest() (solar.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.snapshots) == 0 {
		return solar.Snapshot{}, ErrNoSnapshot
	}
	return m.snapshots[len(m.snapshots)-1], nil
}

// All returns every snapshot stored, oldest first.
func (m *Memory) All() []solar.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]solar.Snapshot(nil), m.snapshots...)
}

func (m *Memory) Close() error {
	return nil
}
