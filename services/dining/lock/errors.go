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
)

// Sentinel errors for lock operations.
var (
	// ErrClosed indicates an operation on a Lock after Close.
	ErrClosed = errors.New("lock: closed")

	// ErrExists indicates Create found the resource already allocated.
	ErrExists = errors.New("lock: resource already exists")

	// ErrNotFound indicates Open could not find the resource file.
	ErrNotFound = errors.New("lock: resource not found")

	// ErrInvalidName indicates an empty name or one containing a path separator.
	ErrInvalidName = errors.New("lock: invalid resource name")
)

// LockError records a failed operation on a named resource.
//
// # Fields
//
//   - Name: The resource name (e.g. "fork-3").
//   - Op: The operation that failed ("create", "open", "acquire", "release").
//   - Err: The underlying error.
type LockError struct {
	Name string
	Op   string
	Err  error
}

// Error returns a human-readable error message.
func (e *LockError) Error() string {
	return fmt.Sprintf("lock %s %s: %v", e.Op, e.Name, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *LockError) Unwrap() error {
	return e.Err
}
