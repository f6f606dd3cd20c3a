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

package eventlog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// CounterFile is the name of the counter file inside a run directory.
const CounterFile = "counter"

const counterSize = 8

var (
	// ErrCounterExists indicates CreateCounter found a leftover counter.
	ErrCounterExists = errors.New("eventlog: counter already exists")

	// ErrCounterDetached indicates use of a Counter after Close.
	ErrCounterDetached = errors.New("eventlog: counter detached")
)

// Counter is one process's mapping of the shared event counter.
//
// # Description
//
// The mapping is MAP_SHARED, so every attached process observes the same
// 64-bit value. Increments are atomic, but callers that need the value and a
// side effect to appear as one step (Log.Record) must also hold the log lock.
type Counter struct {
	file  *os.File
	mem   []byte
	value *atomic.Uint64
}

// CreateCounter allocates a zeroed counter in dir.
//
// # Outputs
//
//   - string: Path of the counter file.
//   - error: ErrCounterExists if a counter is already allocated there.
func CreateCounter(dir string) (string, error) {
	path := filepath.Join(dir, CounterFile)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o600)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("%w: %s", ErrCounterExists, path)
		}
		return "", fmt.Errorf("create counter: %w", err)
	}
	if err := f.Truncate(counterSize); err != nil {
		f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("size counter: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close counter: %w", err)
	}
	return path, nil
}

// RemoveCounter destroys the counter in dir. A missing counter is not an error.
func RemoveCounter(dir string) error {
	err := os.Remove(filepath.Join(dir, CounterFile))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove counter: %w", err)
	}
	return nil
}

// AttachCounter maps the counter in dir into this process.
func AttachCounter(dir string) (*Counter, error) {
	f, err := os.OpenFile(filepath.Join(dir, CounterFile), os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open counter: %w", err)
	}
	mem, err := unix.Mmap(int(f.Fd()), 0, counterSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("map counter: %w", err)
	}
	return &Counter{
		file: f,
		mem:  mem,
		// mmap returns page-aligned memory.
		value: (*atomic.Uint64)(unsafe.Pointer(&mem[0])),
	}, nil
}

// Next advances the counter and returns the new value. The first call on a
// fresh counter returns 1.
func (c *Counter) Next() (uint64, error) {
	if c.value == nil {
		return 0, ErrCounterDetached
	}
	return c.value.Add(1), nil
}

// Load returns the last value handed out (0 if none).
func (c *Counter) Load() (uint64, error) {
	if c.value == nil {
		return 0, ErrCounterDetached
	}
	return c.value.Load(), nil
}

// undo takes back the value returned by the last Next. Only valid while
// the log lock is held.
func (c *Counter) undo() {
	if c.value != nil {
		c.value.Add(^uint64(0))
	}
}

// Close detaches the mapping. The shared counter itself survives until
// RemoveCounter. Safe to call multiple times.
func (c *Counter) Close() error {
	if c.mem == nil {
		return nil
	}
	c.value = nil
	err := unix.Munmap(c.mem)
	c.mem = nil
	if cerr := c.file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("detach counter: %w", err)
	}
	return nil
}
