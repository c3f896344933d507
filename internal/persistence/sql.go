// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/ffutop/renogy-monitor/internal/solar"
)

// ErrDuplicate is returned when a row for the same time already exists and
// replacing it was not requested.
var ErrDuplicate = errors.New("snapshot already stored")

// uniqueViolation is the PostgreSQL SQLSTATE for a duplicate key.
const uniqueViolation = "23505"

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SQLStore inserts snapshots into a table keyed by date_time:
//
//	CREATE TABLE solar (
//		date_time timestamptz PRIMARY KEY,
//		array_v real, array_a real, array_w integer, soc integer,
//		bat_v real, bat_a real, load_v real, load_a real
//	);
type SQLStore struct {
	db    *sql.DB
	force bool

	insertQuery string
	deleteQuery string
}

// OpenSQL connects to the database. The driver must be registered; lib/pq is
// registered as "postgres".
func OpenSQL(driver, dsn, table string, force bool) (*SQLStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to db: %w", err)
	}
	return NewSQLStore(db, table, force), nil
}

// NewSQLStore uses db. With force set, a row with the same time is replaced
// instead of rejected.
func NewSQLStore(db *sql.DB, table string, force bool) *SQLStore {
	table = pq.QuoteIdentifier(table)
	return &SQLStore{
		db:    db,
		force: force,
		insertQuery: "INSERT INTO " + table +
			" (date_time, array_v, array_a, array_w, soc, bat_v, bat_a, load_v, load_a)" +
			" VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)",
		deleteQuery: "DELETE FROM " + table + " WHERE date_time = $1",
	}
}

// Store inserts s.
func (s *SQLStore) Store(ctx context.Context, snap solar.Snapshot) error {
	err := s.insert(ctx, s.db, snap)
	if err == nil {
		return nil
	}
	if !isUniqueViolation(err) {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	if !s.force {
		return fmt.Errorf("%w: %s", ErrDuplicate, snap.Time.Format(solar.TimeLayout))
	}

	slog.Debug("Replacing stored snapshot", "time", snap.Time)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.deleteQuery, snap.Time); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	if err := s.insert(ctx, tx, snap); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return tx.Commit()
}

func (s *SQLStore) insert(ctx context.Context, db execer, snap solar.Snapshot) error {
	_, err := db.ExecContext(ctx, s.insertQuery,
		snap.Time,
		snap.ArrayVolts, snap.ArrayAmps, snap.ArrayWatts, snap.SOC,
		snap.BatteryVolts, snap.BatteryAmps, snap.LoadVolts, snap.LoadAmps)
	return err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func (s *SQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
