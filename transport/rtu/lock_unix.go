// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package rtu

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

type flockLock struct {
	fd    int
	saved *unix.Termios
}

// lockDevice takes an exclusive advisory lock on path and saves its line
// settings so they can be restored on release.
func lockDevice(path string) (deviceLock, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		unix.Close(fd)
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, errLocked
		}
		return nil, fmt.Errorf("flock: %w", err)
	}
	saved, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	if err != nil {
		unix.Flock(fd, unix.LOCK_UN)
		unix.Close(fd)
		return nil, fmt.Errorf("get termios: %w", err)
	}
	return &flockLock{fd: fd, saved: saved}, nil
}

func (l *flockLock) Close() error {
	var errs []error
	if err := unix.IoctlSetTermios(l.fd, ioctlSetTermios, l.saved); err != nil {
		errs = append(errs, fmt.Errorf("restore termios: %w", err))
	}
	if err := unix.Flock(l.fd, unix.LOCK_UN); err != nil {
		errs = append(errs, fmt.Errorf("unlock: %w", err))
	}
	if err := unix.Close(l.fd); err != nil {
		errs = append(errs, fmt.Errorf("close: %w", err))
	}
	return errors.Join(errs...)
}
