// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

//go:build unix

package lock

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// UnixFileLocker implements FileLocker using flock(2).
//
// # Description
//
// Locks are scoped to the open file description and released when the
// last descriptor referring to it is closed, including on process death.
type UnixFileLocker struct{}

// Lock blocks in flock(LOCK_EX). EINTR restarts the wait; the kernel keeps
// no queue position for us, so a restarted wait competes like a new one.
func (l *UnixFileLocker) Lock(f *os.File) error {
	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX)
		if err == nil {
			return nil
		}
		if !errors.Is(err, unix.EINTR) {
			return err
		}
	}
}

// TryLock uses LOCK_EX|LOCK_NB.
func (l *UnixFileLocker) TryLock(f *os.File) (bool, error) {
	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, unix.EWOULDBLOCK):
			return false, nil
		case errors.Is(err, unix.EINTR):
			continue
		default:
			return false, err
		}
	}
}

// Unlock uses LOCK_UN.
func (l *UnixFileLocker) Unlock(f *os.File) error {
	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_UN)
		if !errors.Is(err, unix.EINTR) {
			return err
		}
	}
}

func newPlatformLocker() FileLocker {
	return &UnixFileLocker{}
}
