// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/lib/pq"
)

// fakeDB is an in-memory table keyed by date_time that answers duplicate
// inserts the way PostgreSQL does.
type fakeDB struct {
	mu      sync.Mutex
	rows    map[time.Time][]driver.Value
	queries []string
}

func (db *fakeDB) Connect(context.Context) (driver.Conn, error) { return &fakeConn{db: db}, nil }
func (db *fakeDB) Driver() driver.Driver                       { return db }
func (db *fakeDB) Open(string) (driver.Conn, error)            { return &fakeConn{db: db}, nil }

type fakeConn struct {
	db *fakeDB
}

func (c *fakeConn) Prepare(query string) (driver.Stmt, error) {
	return nil, errors.New("prepare not supported")
}

func (c *fakeConn) Close() error { return nil }

func (c *fakeConn) Begin() (driver.Tx, error) {
	c.db.log("BEGIN")
	return c, nil
}

func (c *fakeConn) Commit() error {
	c.db.log("COMMIT")
	return nil
}

func (c *fakeConn) Rollback() error {
	c.db.log("ROLLBACK")
	return nil
}

func (c *fakeConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	db := c.db
	db.log(query)
	db.mu.Lock()
	defer db.mu.Unlock()

	key := args[0].Value.(time.Time)
	switch {
	case strings.HasPrefix(query, "INSERT"):
		if _, ok := db.rows[key]; ok {
			return nil, &pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"}
		}
		values := make([]driver.Value, len(args))
		for i, arg := range args {
			values[i] = arg.Value
		}
		db.rows[key] = values
	case strings.HasPrefix(query, "DELETE"):
		delete(db.rows, key)
	}
	return driver.RowsAffected(1), nil
}

func (db *fakeDB) log(query string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.queries = append(db.queries, strings.Fields(query)[0])
}

func newFakeStore(t *testing.T, force bool) (*SQLStore, *fakeDB) {
	t.Helper()
	fake := &fakeDB{rows: make(map[time.Time][]driver.Value)}
	store := NewSQLStore(sql.OpenDB(fake), "solar", force)
	t.Cleanup(func() { store.Close() })
	return store, fake
}

func TestSQLStoreQueries(t *testing.T) {
	store, _ := newFakeStore(t, false)
	wantInsert := `INSERT INTO "solar" (date_time, array_v, array_a, array_w, soc, bat_v, bat_a, load_v, load_a) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if store.insertQuery != wantInsert {
		t.Errorf("insert query = %q, want %q", store.insertQuery, wantInsert)
	}
	if want := `DELETE FROM "solar" WHERE date_time = $1`; store.deleteQuery != want {
		t.Errorf("delete query = %q, want %q", store.deleteQuery, want)
	}
}

func TestSQLStoreInsert(t *testing.T) {
	store, fake := newFakeStore(t, false)
	if err := store.Store(context.Background(), sample); err != nil {
		t.Fatalf("Store() failed: %v", err)
	}

	want := []driver.Value{sample.Time, 18.6, 2.56, int64(47), int64(87), 13.2, 3.45, 13.2, 1.2}
	if diff := cmp.Diff(want, fake.rows[sample.Time]); diff != "" {
		t.Errorf("row mismatch (-want +got):\n%s", diff)
	}
}

func TestSQLStoreDuplicate(t *testing.T) {
	store, fake := newFakeStore(t, false)
	ctx := context.Background()
	if err := store.Store(ctx, sample); err != nil {
		t.Fatal(err)
	}

	changed := sample
	changed.SOC = 12
	err := store.Store(ctx, changed)
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("Store() error = %v, want %v", err, ErrDuplicate)
	}
	if got := fake.rows[sample.Time][4]; got != int64(87) {
		t.Errorf("soc = %v, want the original row kept", got)
	}
}

func TestSQLStoreForceReplaces(t *testing.T) {
	store, fake := newFakeStore(t, true)
	ctx := context.Background()
	if err := store.Store(ctx, sample); err != nil {
		t.Fatal(err)
	}

	changed := sample
	changed.SOC = 12
	if err := store.Store(ctx, changed); err != nil {
		t.Fatalf("Store() failed: %v", err)
	}
	if got := fake.rows[sample.Time][4]; got != int64(12) {
		t.Errorf("soc = %v, want 12", got)
	}
	want := []string{"INSERT", "INSERT", "BEGIN", "DELETE", "INSERT", "COMMIT"}
	if diff := cmp.Diff(want, fake.queries); diff != "" {
		t.Errorf("queries mismatch (-want +got):\n%s", diff)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"Duplicate", &pq.Error{Code: "23505"}, true},
		{"Wrapped", errors.Join(errors.New("insert"), &pq.Error{Code: "23505"}), true},
		{"OtherCode", &pq.Error{Code: "42P01"}, false},
		{"Plain", errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isUniqueViolation(tt.err); got != tt.want {
				t.Errorf("isUniqueViolation() = %v, want %v", got, tt.want)
			}
		})
	}
}
