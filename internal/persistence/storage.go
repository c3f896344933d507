// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package persistence stores and republishes solar snapshots.
package persistence

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/multierr"

	"github.com/ffutop/renogy-monitor/internal/solar"
)

// ErrNoSnapshot is returned by Latest before any snapshot was stored.
var ErrNoSnapshot = errors.New("no snapshot stored")

// Sink receives every snapshot taken.
type Sink interface {
	// Store persists s. It is called once per snapshot.
	Store(ctx context.Context, s solar.Snapshot) error
	Close() error
}

// Named attaches a name used in logs to a Sink.
type Named struct {
	Name string
	Sink
}

// Multi fans snapshots out to several sinks at once. A failing sink is
// logged and does not keep the snapshot from the others.
type Multi []Named

// Store stores s in every sink and returns the combined failures.
func (m Multi) Store(ctx context.Context, s solar.Snapshot) error {
	p := pool.New().WithErrors()
	for _, sink := range m {
		sink := sink
		p.Go(func() error {
			if err := sink.Store(ctx, s); err != nil {
				slog.Error("Failed to store snapshot", "sink", sink.Name, "err", err)
				return err
			}
			slog.Debug("Snapshot stored", "sink", sink.Name)
			return nil
		})
	}
	return p.Wait()
}

// Close closes every sink.
func (m Multi) Close() error {
	var err error
	for _, sink := range m {
		err = multierr.Append(err, sink.Close())
	}
	return err
}
