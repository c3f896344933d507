// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package transport

import (
	"context"
)

// Session performs register operations against stations on a bus. At most
// one operation is in flight at a time.
type Session interface {
	ReadRegisters(ctx context.Context, station byte, address, count uint16) ([]uint16, error)
	// WriteRegisters returns the number of registers the station
	// acknowledged.
	WriteRegisters(ctx context.Context, station byte, address uint16, values []uint16) (int, error)
}

// DeclaredSession is implemented by sessions that can return a read reply
// whose register count differs from the request.
type DeclaredSession interface {
	ReadDeclaredRegisters(ctx context.Context, station byte, address, count uint16) ([]uint16, error)
}

// DeclaredReader is implemented by register views that can return a read
// reply whose register count differs from the request.
type DeclaredReader interface {
	ReadDeclared(ctx context.Context, address, count uint16) ([]uint16, error)
}

// ReadDeclared reads through regs.ReadDeclared when regs supports it and
// through regs.Read otherwise.
func ReadDeclared(ctx context.Context, regs Registers, address, count uint16) ([]uint16, error) {
	if dr, ok := regs.(DeclaredReader); ok {
		return dr.ReadDeclared(ctx, address, count)
	}
	return regs.Read(ctx, address, count)
}

// Registers is the register view of a single station.
type Registers interface {
	Read(ctx context.Context, address, count uint16) ([]uint16, error)
	Write(ctx context.Context, address uint16, values []uint16) (int, error)
}

// Station binds a Session to one station address.
type Station struct {
	Session Session
	ID      byte
}

// NewStation returns the register view of station id on s.
func NewStation(s Session, id byte) *Station {
	return &Station{Session: s, ID: id}
}

func (st *Station) Read(ctx context.Context, address, count uint16) ([]uint16, error) {
	return st.Session.ReadRegisters(ctx, st.ID, address, count)
}

// ReadDeclared returns as many registers as the station declares when the
// session supports it, and requires exactly count otherwise.
func (st *Station) ReadDeclared(ctx context.Context, address, count uint16) ([]uint16, error) {
	if ds, ok := st.Session.(DeclaredSession); ok {
		return ds.ReadDeclaredRegisters(ctx, st.ID, address, count)
	}
	return st.Session.ReadRegisters(ctx, st.ID, address, count)
}

func (st *Station) Write(ctx context.Context, address uint16, values []uint16) (int, error) {
	return st.Session.WriteRegisters(ctx, st.ID, address, values)
}
