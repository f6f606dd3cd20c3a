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
	"testing"
)

func TestTerminationFlag_SetOnce(t *testing.T) {
	var f TerminationFlag
	if f.IsSet() || f.Reason() != "" {
		t.Fatal("zero flag should be unset")
	}
	if !f.Set("signal") {
		t.Fatal("first Set() = false")
	}
	if f.Set("actor_exit") {
		t.Error("second Set() = true")
	}
	if !f.IsSet() || f.Reason() != "signal" {
		t.Errorf("IsSet() = %v, Reason() = %q", f.IsSet(), f.Reason())
	}
}

func TestTerminationFlag_ConcurrentSet(t *testing.T) {
	var f TerminationFlag
	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if f.Set("race") {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()
	if got := winners.Load(); got != 1 {
		t.Errorf("%d callers won Set(), want 1", got)
	}
}
