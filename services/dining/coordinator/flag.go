// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package coordinator

import (
	"sync"
	"sync/atomic"
)

// TerminationFlag is the run-wide request to stop. It only ever goes from
// unset to set.
type TerminationFlag struct {
	set    atomic.Bool
	once   sync.Once
	reason string
}

// Set raises the flag. Only the first call succeeds and records reason.
func (f *TerminationFlag) Set(reason string) bool {
	won := false
	f.once.Do(func() {
		f.reason = reason
		f.set.Store(true)
		won = true
	})
	return won
}

// IsSet reports whether the flag has been raised.
func (f *TerminationFlag) IsSet() bool {
	return f.set.Load()
}

// Reason returns the reason given to the first Set, or "".
func (f *TerminationFlag) Reason() string {
	if !f.set.Load() {
		return ""
	}
	return f.reason
}
