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
	"os"
)

// FileLocker abstracts platform-specific file locking operations.
//
// # Description
//
// Lock blocks until the exclusive lock is granted. TryLock never blocks.
// Implementations must retry transparently when a blocking wait is
// interrupted by an unrelated signal.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use on different files.
type FileLocker interface {
	// Lock acquires an exclusive lock, blocking until it is available.
	Lock(f *os.File) error

	// TryLock attempts the exclusive lock without blocking.
	// Returns false, nil if another descriptor holds it.
	TryLock(f *os.File) (bool, error)

	// Unlock releases the lock. Safe to call even if not locked.
	Unlock(f *os.File) error
}

// newFileLocker creates a platform-appropriate FileLocker.
func newFileLocker() FileLocker {
	return newPlatformLocker()
}
