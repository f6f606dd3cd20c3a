// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package eventlog

import (
	"errors"
	"fmt"

	"github.com/AleutianAI/dining/services/dining/ring"
)

// ErrVerify is wrapped by every VerifyError.
var ErrVerify = errors.New("eventlog: verification failed")

// VerifyError reports the first event that breaks the log's rules.
type VerifyError struct {
	// Seq is the offending event's sequence number, 0 for whole-log checks.
	Seq    uint64
	Reason string
}

// Error returns a human-readable error message.
func (e *VerifyError) Error() string {
	if e.Seq == 0 {
		return fmt.Sprintf("%v: %s", ErrVerify, e.Reason)
	}
	return fmt.Sprintf("%v: event %d: %s", ErrVerify, e.Seq, e.Reason)
}

// Unwrap returns ErrVerify.
func (e *VerifyError) Unwrap() error {
	return ErrVerify
}

// Expect describes the run that produced a log.
type Expect struct {
	Philosophers int
	Meals        int

	// Complete requires every philosopher to have finished all its meals
	// with both forks put down. Leave it false for interrupted runs, where
	// the log may stop anywhere.
	Complete bool
}

// Report summarizes a log that passed Verify.
type Report struct {
	Events int

	// Meals counts finished cycles per philosopher id.
	Meals map[int]int

	// MaxEating is the largest number of philosophers seen eating at once.
	MaxEating int
}

// cycle is the position of a philosopher within one meal.
type cycle int

const (
	wantThinking cycle = iota
	wantFirstPickUp
	wantSecondPickUp
	wantEating
	wantFirstRelease
	wantSecondRelease
)

// Verify checks a parsed event log against the rules every run obeys.
//
// # Description
//
// The checks, in order of detection:
//
//   - sequence numbers are exactly 1, 2, 3, ... in line order
//   - philosopher and fork ids lie in 1..N and forks are a philosopher's
//     neighbours
//   - a fork is picked up only while free and released only by its holder
//   - each philosopher follows think, pick up first, pick up second, eat,
//     release first, release second, in the ring's acquisition order
//   - no philosopher logs more than Meals cycles
//
// With Complete set it also requires 6·Meals·N events, Meals cycles per
// philosopher and every fork free at the end.
//
// # Outputs
//
//   - Report: Summary of the log, valid even when err is non-nil.
//   - error: *VerifyError for the first violation.
func Verify(events []Event, exp Expect) (Report, error) {
	rep := Report{Meals: make(map[int]int)}
	n := exp.Philosophers
	if n < ring.MinSize {
		return rep, &VerifyError{Reason: fmt.Sprintf("invalid philosopher count %d", n)}
	}

	type seat struct{ first, second int }
	seats := make([]seat, n+1)
	for id := 1; id <= n; id++ {
		first, second, err := ring.Order(id, n)
		if err != nil {
			return rep, &VerifyError{Reason: err.Error()}
		}
		seats[id] = seat{first, second}
	}

	stage := make([]cycle, n+1)
	holder := make([]int, n+1)
	eating := 0

	for i, ev := range events {
		rep.Events++
		fail := func(format string, args ...any) (Report, error) {
			return rep, &VerifyError{Seq: ev.Seq, Reason: fmt.Sprintf(format, args...)}
		}

		if ev.Seq != uint64(i+1) {
			return fail("expected sequence number %d", i+1)
		}
		id := ev.Philosopher
		if id < 1 || id > n {
			return fail("philosopher %d out of range 1..%d", id, n)
		}
		if exp.Meals > 0 && rep.Meals[id] >= exp.Meals {
			return fail("philosopher %d already finished %d meals", id, exp.Meals)
		}

		s := seats[id]
		switch stage[id] {
		case wantThinking:
			if ev.Kind != KindThinking {
				return fail("philosopher %d: %s before thinking", id, ev.Kind)
			}
		case wantFirstPickUp, wantSecondPickUp:
			want := s.first
			if stage[id] == wantSecondPickUp {
				want = s.second
			}
			if ev.Kind != KindPickUp || ev.Fork != want {
				return fail("philosopher %d: expected to pick up fork %d", id, want)
			}
			if holder[want] != 0 {
				return fail("fork %d picked up while held by philosopher %d", want, holder[want])
			}
			holder[want] = id
		case wantEating:
			if ev.Kind != KindEating {
				return fail("philosopher %d: %s instead of eating", id, ev.Kind)
			}
			eating++
			rep.MaxEating = max(rep.MaxEating, eating)
		case wantFirstRelease, wantSecondRelease:
			want := s.first
			if stage[id] == wantSecondRelease {
				want = s.second
			}
			if ev.Kind != KindRelease || ev.Fork != want {
				return fail("philosopher %d: expected to release fork %d", id, want)
			}
			if holder[want] != id {
				return fail("philosopher %d released fork %d it does not hold", id, want)
			}
			holder[want] = 0
			if stage[id] == wantFirstRelease {
				eating--
			}
		}

		if stage[id] == wantSecondRelease {
			stage[id] = wantThinking
			rep.Meals[id]++
		} else {
			stage[id]++
		}
	}

	if !exp.Complete {
		return rep, nil
	}
	if want := EventsPerMeal * exp.Meals * n; rep.Events != want {
		return rep, &VerifyError{Reason: fmt.Sprintf("%d events, want %d", rep.Events, want)}
	}
	for id := 1; id <= n; id++ {
		if rep.Meals[id] != exp.Meals {
			return rep, &VerifyError{Reason: fmt.Sprintf("philosopher %d ate %d meals, want %d", id, rep.Meals[id], exp.Meals)}
		}
	}
	for fork := 1; fork <= n; fork++ {
		if holder[fork] != 0 {
			return rep, &VerifyError{Reason: fmt.Sprintf("fork %d still held by philosopher %d", fork, holder[fork])}
		}
	}
	return rep, nil
}
