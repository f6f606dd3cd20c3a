// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

/*
Package lock provides named, cross-process exclusive resources.

# Overview

A named resource is a lock file inside a run directory. Every process that
wants the resource opens its own descriptor on the file and takes an
exclusive flock(2) on it. Because flock locks belong to the open file
description, two descriptors opened independently exclude each other even
inside one process, while a descriptor inherited across exec would share the
lock with its parent. Each philosopher therefore opens every lock by path.

	path, err := lock.Create(runDir, "fork-3")   // coordinator, once
	...
	l, err := lock.Open(runDir, "fork-3")        // every actor
	defer l.Close()
	if err := l.Acquire(); err != nil { ... }    // blocks, retries EINTR
	defer l.Release()                            // non-blocking, idempotent

# Ordering

Waiters are woken by the kernel in whatever order it chooses. On Linux this
is close to FIFO in practice but it is not a contract; callers that need
deadlock freedom must impose their own acquisition order.

# Limitations

  - Advisory locks only; a process that never calls Acquire is not excluded.
  - Release does not verify ownership. Releasing a lock held through a
    different descriptor is a caller error.
  - A process killed while holding a lock releases it when the kernel closes
    its descriptors.
*/
package lock
