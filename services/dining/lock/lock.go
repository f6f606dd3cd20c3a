// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lock

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Ext is the file extension of every lock file.
const Ext = ".lock"

// Lock is one process's handle on a named exclusive resource.
//
// # Description
//
// Lock tracks only whether this handle holds the resource. It does not know
// which other process holds it.
//
// # Thread Safety
//
// A Lock is NOT safe for concurrent use. Open one Lock per goroutine or
// process that competes for the resource.
type Lock struct {
	name   string
	path   string
	locker FileLocker
	file   *os.File
	held   bool
}

// Path returns the lock file path of resource name inside dir.
func Path(dir, name string) string {
	return filepath.Join(dir, name+Ext)
}

// Create allocates the named resource in dir, free.
//
// # Description
//
// Creates the lock file with O_EXCL so a leftover from an earlier run (or a
// concurrent run) is reported instead of silently shared.
//
// # Inputs
//
//   - dir: Existing run directory.
//   - name: Resource name, e.g. "fork-1" or "log".
//
// # Outputs
//
//   - string: Path of the created lock file.
//   - error: ErrExists (wrapped in *LockError) if already allocated.
func Create(dir, name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	path := Path(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o600)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			err = ErrExists
		}
		return "", &LockError{Name: name, Op: "create", Err: err}
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", &LockError{Name: name, Op: "create", Err: err}
	}
	return path, nil
}

// Remove deletes the named resource. Removing a missing resource is not an error.
func Remove(dir, name string) error {
	if err := os.Remove(Path(dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &LockError{Name: name, Op: "remove", Err: err}
	}
	return nil
}

// Open attaches to an existing named resource.
//
// # Outputs
//
//   - *Lock: Handle in the released state.
//   - error: ErrNotFound (wrapped) if the resource was never created.
func Open(dir, name string) (*Lock, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	path := Path(dir, name)
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = ErrNotFound
		}
		return nil, &LockError{Name: name, Op: "open", Err: err}
	}
	return &Lock{
		name:   name,
		path:   path,
		locker: newFileLocker(),
		file:   f,
	}, nil
}

// Name returns the resource name.
func (l *Lock) Name() string {
	return l.name
}

// Held reports whether this handle currently holds the resource.
func (l *Lock) Held() bool {
	return l.held
}

// Acquire blocks until the resource is free and claims it.
//
// # Description
//
// Waits in the kernel. Interruptions by unrelated signals are retried.
// There is no re-entrancy: calling Acquire on a handle that already holds
// the resource returns immediately without a second claim.
func (l *Lock) Acquire() error {
	if l.file == nil {
		return &LockError{Name: l.name, Op: "acquire", Err: ErrClosed}
	}
	if l.held {
		return nil
	}
	if err := l.locker.Lock(l.file); err != nil {
		return &LockError{Name: l.name, Op: "acquire", Err: err}
	}
	l.held = true
	return nil
}

// TryAcquire claims the resource if it is free, without blocking.
func (l *Lock) TryAcquire() (bool, error) {
	if l.file == nil {
		return false, &LockError{Name: l.name, Op: "acquire", Err: ErrClosed}
	}
	if l.held {
		return true, nil
	}
	ok, err := l.locker.TryLock(l.file)
	if err != nil {
		return false, &LockError{Name: l.name, Op: "acquire", Err: err}
	}
	l.held = ok
	return ok, nil
}

// Release frees the resource. It never blocks and releasing a handle that
// does not hold the resource is a no-op.
func (l *Lock) Release() error {
	if l.file == nil || !l.held {
		return nil
	}
	l.held = false
	if err := l.locker.Unlock(l.file); err != nil {
		return &LockError{Name: l.name, Op: "release", Err: err}
	}
	return nil
}

// Close releases the resource if held and closes the descriptor.
// Safe to call multiple times.
func (l *Lock) Close() error {
	if l.file == nil {
		return nil
	}
	relErr := l.Release()
	err := l.file.Close()
	l.file = nil
	if relErr != nil {
		return relErr
	}
	if err != nil {
		return &LockError{Name: l.name, Op: "close", Err: err}
	}
	return nil
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" || strings.ContainsRune(name, os.PathSeparator) || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
