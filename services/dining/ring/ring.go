// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ring arranges N forks in a cycle and fixes the order in which
// each philosopher acquires its two forks.
//
// Philosopher id sits between forks id and (id mod N)+1. Odd philosophers
// take fork id first, even philosophers take the other fork first. With
// every neighbour pair disagreeing on direction, the configuration where
// each philosopher holds one fork and waits for the next cannot form.
package ring

import (
	"errors"
	"fmt"

	"github.com/AleutianAI/dining/services/dining/lock"
)

// MinSize is the smallest ring that has two distinct forks per philosopher.
const MinSize = 2

var (
	// ErrInvalidSize is returned for rings smaller than MinSize.
	ErrInvalidSize = errors.New("ring: fewer than two forks")

	// ErrInvalidID is returned for philosopher or fork ids outside 1..N.
	ErrInvalidID = errors.New("ring: id out of range")
)

// ForkName returns the resource name of fork i.
func ForkName(i int) string {
	return fmt.Sprintf("fork-%d", i)
}

// Neighbors returns the two forks adjacent to philosopher id, unordered:
// id and (id mod n)+1.
func Neighbors(id, n int) (int, int) {
	return id, id%n + 1
}

// Order returns the forks of philosopher id in acquisition order.
//
// # Inputs
//
//   - id: Philosopher id in 1..n.
//   - n: Ring size, at least MinSize.
//
// # Outputs
//
//   - first, second: Fork ids. Odd ids take fork id first, even ids take
//     (id mod n)+1 first.
func Order(id, n int) (first, second int, err error) {
	if n < MinSize {
		return 0, 0, fmt.Errorf("%w: %d", ErrInvalidSize, n)
	}
	if id < 1 || id > n {
		return 0, 0, fmt.Errorf("%w: philosopher %d of %d", ErrInvalidID, id, n)
	}
	own, other := Neighbors(id, n)
	if id%2 == 1 {
		return own, other, nil
	}
	return other, own, nil
}

// Allocate creates forks 1..n in dir, all free.
//
// # Description
//
// All-or-nothing: if fork k cannot be created, forks 1..k-1 are removed
// before the error is returned.
func Allocate(dir string, n int) error {
	if n < MinSize {
		return fmt.Errorf("%w: %d", ErrInvalidSize, n)
	}
	for i := 1; i <= n; i++ {
		if _, err := lock.Create(dir, ForkName(i)); err != nil {
			_ = Remove(dir, i-1)
			return fmt.Errorf("allocate fork %d: %w", i, err)
		}
	}
	return nil
}

// Remove destroys forks 1..n in dir. Missing forks are skipped.
func Remove(dir string, n int) error {
	var errs []error
	for i := 1; i <= n; i++ {
		if err := lock.Remove(dir, ForkName(i)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Seat is the pair of forks one philosopher competes for.
//
// # Thread Safety
//
// A Seat is owned by a single philosopher and is NOT safe for concurrent use.
type Seat struct {
	id       int
	first    *lock.Lock
	second   *lock.Lock
	firstID  int
	secondID int
}

// Sit attaches philosopher id to its two forks in dir.
func Sit(dir string, id, n int) (*Seat, error) {
	first, second, err := Order(id, n)
	if err != nil {
		return nil, err
	}
	a, err := lock.Open(dir, ForkName(first))
	if err != nil {
		return nil, err
	}
	b, err := lock.Open(dir, ForkName(second))
	if err != nil {
		a.Close()
		return nil, err
	}
	return &Seat{id: id, first: a, second: b, firstID: first, secondID: second}, nil
}

// ID returns the philosopher id this seat belongs to.
func (s *Seat) ID() int { return s.id }

// First returns the id of the fork acquired first.
func (s *Seat) First() int { return s.firstID }

// Second returns the id of the fork acquired second.
func (s *Seat) Second() int { return s.secondID }

// AcquireFirst blocks until the first fork is held.
func (s *Seat) AcquireFirst() error { return s.first.Acquire() }

// AcquireSecond blocks until the second fork is held.
func (s *Seat) AcquireSecond() error { return s.second.Acquire() }

// ReleaseFirst frees the first fork.
func (s *Seat) ReleaseFirst() error { return s.first.Release() }

// ReleaseSecond frees the second fork.
func (s *Seat) ReleaseSecond() error { return s.second.Release() }

// Close releases anything still held and detaches from both forks.
func (s *Seat) Close() error {
	return errors.Join(s.first.Close(), s.second.Close())
}
