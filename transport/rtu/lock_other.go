// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package rtu

import (
	"errors"
	"runtime"
)

func lockDevice(path string) (deviceLock, error) {
	return nil, errors.New("exclusive device locking is not supported on " + runtime.GOOS)
}
