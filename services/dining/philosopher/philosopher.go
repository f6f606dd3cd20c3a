// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package philosopher

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/AleutianAI/dining/pkg/logging"
	"github.com/AleutianAI/dining/services/dining/eventlog"
)

// Forks is the pair of forks one philosopher competes for, already in
// acquisition order. *ring.Seat implements it.
type Forks interface {
	First() int
	Second() int
	AcquireFirst() error
	AcquireSecond() error
	ReleaseFirst() error
	ReleaseSecond() error
}

// Recorder appends one line to the shared event log. *eventlog.Log
// implements it.
type Recorder interface {
	Record(template string, args ...any) (uint64, error)
}

// Philosopher runs the meal cycle for one actor.
//
// # Thread Safety
//
// Not safe for concurrent use. Each actor process owns exactly one.
type Philosopher struct {
	id       int
	meals    int
	thinkMax time.Duration
	eatMax   time.Duration
	forks    Forks
	log      Recorder
	logger   *logging.Logger

	// OnTransition, if set, is called on every state change before the
	// state's work starts.
	OnTransition func(State)

	sleep func(time.Duration)
}

// New creates a philosopher that will eat spec.Meals meals using forks and
// record its transitions to log.
func New(spec Spec, forks Forks, log Recorder, logger *logging.Logger) *Philosopher {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Philosopher{
		id:       spec.ID,
		meals:    spec.Meals,
		thinkMax: spec.ThinkMax,
		eatMax:   spec.EatMax,
		forks:    forks,
		log:      log,
		logger:   logger,
		sleep:    time.Sleep,
	}
}

// Run executes meal cycles until the countdown reaches zero or stop
// reports true.
//
// # Description
//
// One cycle is:
//
//	think (log, sleep) -> acquire first (log) -> acquire second (log)
//	-> eat (log, sleep) -> log, release first -> log, release second
//
// Pick-ups are logged after the acquire completes; releases are logged
// before the release happens. stop is consulted only between cycles, so a
// philosopher blocked on a fork finishes the cycle first.
//
// # Outputs
//
//   - int: Meals completed.
//   - error: First lock or log failure. Forks still held stay held; the
//     caller releases them by closing its seat.
func (p *Philosopher) Run(stop func() bool) (int, error) {
	if stop == nil {
		stop = func() bool { return false }
	}
	eaten := 0
	for remaining := p.meals; ; {
		if err := p.cycle(); err != nil {
			return eaten, fmt.Errorf("philosopher %d meal %d: %w", p.id, eaten+1, err)
		}
		eaten++
		remaining--
		if remaining <= 0 {
			break
		}
		if stop() {
			p.logger.Info("termination observed", "meals", eaten, "remaining", remaining)
			break
		}
	}
	p.enter(StateTerminated)
	return eaten, nil
}

func (p *Philosopher) cycle() error {
	first, second := p.forks.First(), p.forks.Second()

	p.enter(StateThinking)
	if err := p.record(eventlog.TemplateThinking, p.id); err != nil {
		return err
	}
	p.sleep(RandomDuration(p.thinkMax))

	p.enter(StateAcquiringFirstFork)
	if err := p.forks.AcquireFirst(); err != nil {
		return err
	}
	if err := p.record(eventlog.TemplatePickUp, p.id, first); err != nil {
		return err
	}

	p.enter(StateAcquiringSecondFork)
	if err := p.forks.AcquireSecond(); err != nil {
		return err
	}
	if err := p.record(eventlog.TemplatePickUp, p.id, second); err != nil {
		return err
	}

	p.enter(StateEating)
	if err := p.record(eventlog.TemplateEating, p.id); err != nil {
		return err
	}
	p.sleep(RandomDuration(p.eatMax))

	p.enter(StateReleasingFirstFork)
	if err := p.record(eventlog.TemplateRelease, p.id, first); err != nil {
		return err
	}
	if err := p.forks.ReleaseFirst(); err != nil {
		return err
	}

	p.enter(StateReleasingSecondFork)
	if err := p.record(eventlog.TemplateRelease, p.id, second); err != nil {
		return err
	}
	return p.forks.ReleaseSecond()
}

func (p *Philosopher) enter(s State) {
	p.logger.Debug("state", "state", s.String())
	if p.OnTransition != nil {
		p.OnTransition(s)
	}
}

func (p *Philosopher) record(template string, args ...any) error {
	if _, err := p.log.Record(template, args...); err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

// RandomDuration returns a uniformly random duration in [0, bound). A
// non-positive bound yields 0.
func RandomDuration(bound time.Duration) time.Duration {
	if bound <= 0 {
		return 0
	}
	return rand.N(bound)
}
