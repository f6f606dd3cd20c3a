// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ring

import (
	"errors"
	"testing"

	"github.com/AleutianAI/dining/services/dining/lock"
)

func TestOrder(t *testing.T) {
	tests := []struct {
		id, n         int
		first, second int
	}{
		{1, 5, 1, 2},
		{2, 5, 3, 2},
		{3, 5, 3, 4},
		{4, 5, 5, 4},
		{5, 5, 5, 1},
		{1, 2, 1, 2},
		{2, 2, 1, 2},
		{3, 3, 3, 1},
	}

	for _, tt := range tests {
		first, second, err := Order(tt.id, tt.n)
		if err != nil {
			t.Fatalf("Order(%d, %d) error = %v", tt.id, tt.n, err)
		}
		if first != tt.first || second != tt.second {
			t.Errorf("Order(%d, %d) = (%d, %d), want (%d, %d)", tt.id, tt.n, first, second, tt.first, tt.second)
		}
	}
}

func TestOrder_Invalid(t *testing.T) {
	if _, _, err := Order(1, 1); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("Order(1, 1) error = %v, want ErrInvalidSize", err)
	}
	if _, _, err := Order(0, 5); !errors.Is(err, ErrInvalidID) {
		t.Errorf("Order(0, 5) error = %v, want ErrInvalidID", err)
	}
	if _, _, err := Order(6, 5); !errors.Is(err, ErrInvalidID) {
		t.Errorf("Order(6, 5) error = %v, want ErrInvalidID", err)
	}
}

// Every philosopher holding its first fork at once would need n distinct
// first forks. The ordering rule always makes two neighbours share one.
func TestOrder_NoCircularWait(t *testing.T) {
	for n := MinSize; n <= 16; n++ {
		firsts := make(map[int]bool)
		for id := 1; id <= n; id++ {
			first, second, err := Order(id, n)
			if err != nil {
				t.Fatalf("Order(%d, %d) error = %v", id, n, err)
			}
			a, b := Neighbors(id, n)
			if !(first == a && second == b) && !(first == b && second == a) {
				t.Fatalf("Order(%d, %d) = (%d, %d), not the neighbouring forks", id, n, first, second)
			}
			firsts[first] = true
		}
		if len(firsts) == n {
			t.Errorf("n=%d: all %d first forks distinct, circular wait possible", n, n)
		}
	}
}

func TestAllocate_AllOrNothing(t *testing.T) {
	dir := t.TempDir()
	if _, err := lock.Create(dir, ForkName(3)); err != nil {
		t.Fatalf("pre-create fork-3: %v", err)
	}

	err := Allocate(dir, 5)
	if !errors.Is(err, lock.ErrExists) {
		t.Fatalf("Allocate() error = %v, want ErrExists", err)
	}
	for _, i := range []int{1, 2} {
		if _, err := lock.Open(dir, ForkName(i)); !errors.Is(err, lock.ErrNotFound) {
			t.Errorf("fork-%d left behind after failed allocation", i)
		}
	}
}

func TestAllocateAndRemove(t *testing.T) {
	dir := t.TempDir()
	if err := Allocate(dir, 4); err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if err := Remove(dir, 4); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if err := Allocate(dir, 4); err != nil {
		t.Fatalf("re-Allocate() after Remove error = %v", err)
	}
}

func TestSeat_NeighboursExclude(t *testing.T) {
	dir := t.TempDir()
	if err := Allocate(dir, 5); err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}

	// Philosophers 2 and 3 both take fork 3 first.
	p2, err := Sit(dir, 2, 5)
	if err != nil {
		t.Fatalf("Sit(2) error = %v", err)
	}
	defer p2.Close()
	p3, err := Sit(dir, 3, 5)
	if err != nil {
		t.Fatalf("Sit(3) error = %v", err)
	}
	defer p3.Close()

	if p2.First() != 3 || p3.First() != 3 {
		t.Fatalf("unexpected first forks: %d, %d", p2.First(), p3.First())
	}
	if err := p2.AcquireFirst(); err != nil {
		t.Fatalf("AcquireFirst() error = %v", err)
	}

	probe, err := lock.Open(dir, ForkName(3))
	if err != nil {
		t.Fatalf("open probe: %v", err)
	}
	defer probe.Close()
	if ok, _ := probe.TryAcquire(); ok {
		t.Fatal("fork 3 claimed twice")
	}

	if err := p2.ReleaseFirst(); err != nil {
		t.Fatalf("ReleaseFirst() error = %v", err)
	}
	if ok, _ := probe.TryAcquire(); !ok {
		t.Fatal("fork 3 not free after release")
	}
}
