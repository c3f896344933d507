// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package simulator

import (
	"fmt"
	"sync"
)

const (
	MaxAddress = 65535
)

// DataModel holds the holding registers of a simulated controller.
// It uses a simple flat memory model covering the full 16-bit address space.
type DataModel struct {
	mu sync.RWMutex

	HoldingRegisters []uint16
}

// NewDataModel creates a new memory model initialized to zero.
func NewDataModel() *DataModel {
	return &DataModel{
		HoldingRegisters: make([]uint16, MaxAddress+1),
	}
}

// ReadHoldingRegisters reads a range of holding registers.
func (m *DataModel) ReadHoldingRegisters(address, quantity uint16) ([]uint16, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := validateRange(address, quantity); err != nil {
		return nil, err
	}

	result := make([]uint16, quantity)
	copy(result, m.HoldingRegisters[address:])
	return result, nil
}

// WriteMultipleRegisters writes a range of holding registers.
func (m *DataModel) WriteMultipleRegisters(address uint16, values []uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := validateRange(address, uint16(len(values))); err != nil {
		return err
	}

	copy(m.HoldingRegisters[address:], values)
	return nil
}

// Set stores values from address on, truncating at the top of the address
// space.
func (m *DataModel) Set(address uint16, values ...uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()

	copy(m.HoldingRegisters[address:], values)
}

func validateRange(address, quantity uint16) error {
	if quantity == 0 {
		return fmt.Errorf("quantity must be greater than 0")
	}
	// address is 0-based.
	if int(address)+int(quantity) > MaxAddress+1 {
		return fmt.Errorf("address range out of bounds")
	}
	return nil
}
