// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

//go:build unix

package coordinator

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/AleutianAI/dining/services/dining/eventlog"
	"github.com/AleutianAI/dining/services/dining/lock"
	"github.com/AleutianAI/dining/services/dining/ring"
)

// Resources are the shared objects of one run: the run directory with the
// counter, the log lock and the fork ring, plus the event log file.
//
// # Thread Safety
//
// Events is safe for concurrent use. Close runs its teardown once.
type Resources struct {
	RunDir       string
	Output       string
	Philosophers int

	mu      sync.Mutex
	counter *eventlog.Counter

	once     sync.Once
	closeErr error
}

// Allocate creates the resources of a run with n philosophers.
//
// # Description
//
// All-or-nothing, in this order: run directory (must not exist), counter,
// log lock, forks 1..n, event log file. If a step fails every earlier step
// is undone before returning.
//
// # Outputs
//
//   - *Resources: Allocated resources. The caller must Close them.
//   - error: Wraps ErrAllocate.
func Allocate(runDir, output string, n int) (*Resources, error) {
	if n < ring.MinSize {
		return nil, fmt.Errorf("%w: %w", ErrAllocate, ring.ErrInvalidSize)
	}

	var undo []func() error
	fail := func(step string, err error) (*Resources, error) {
		for i := len(undo) - 1; i >= 0; i-- {
			_ = undo[i]()
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrAllocate, step, err)
	}

	if err := os.Mkdir(runDir, 0o700); err != nil {
		if errors.Is(err, fs.ErrExist) {
			err = fmt.Errorf("%w (another run is active or a previous run was killed; remove it)", err)
		}
		return fail("run directory", err)
	}
	undo = append(undo, func() error { return os.Remove(runDir) })

	if _, err := eventlog.CreateCounter(runDir); err != nil {
		return fail("counter", err)
	}
	undo = append(undo, func() error { return eventlog.RemoveCounter(runDir) })

	counter, err := eventlog.AttachCounter(runDir)
	if err != nil {
		return fail("counter", err)
	}
	undo = append(undo, counter.Close)

	if _, err := lock.Create(runDir, eventlog.LockName); err != nil {
		return fail("log lock", err)
	}
	undo = append(undo, func() error { return lock.Remove(runDir, eventlog.LockName) })

	if err := ring.Allocate(runDir, n); err != nil {
		return fail("forks", err)
	}
	undo = append(undo, func() error { return ring.Remove(runDir, n) })

	sink, err := eventlog.CreateSink(output)
	if err != nil {
		return fail("event log", err)
	}
	if err := sink.Close(); err != nil {
		return fail("event log", err)
	}

	return &Resources{
		RunDir:       runDir,
		Output:       output,
		Philosophers: n,
		counter:      counter,
	}, nil
}

// Events returns the last sequence number written to the event log.
func (r *Resources) Events() (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counter == nil {
		return 0, eventlog.ErrCounterDetached
	}
	return r.counter.Load()
}

// Close destroys everything Allocate created except the event log file.
// Only the first call does any work; later calls return its result.
func (r *Resources) Close() error {
	r.once.Do(func() {
		r.mu.Lock()
		cerr := r.counter.Close()
		r.counter = nil
		r.mu.Unlock()

		r.closeErr = errors.Join(
			cerr,
			ring.Remove(r.RunDir, r.Philosophers),
			lock.Remove(r.RunDir, eventlog.LockName),
			eventlog.RemoveCounter(r.RunDir),
			removeDir(r.RunDir),
		)
	})
	return r.closeErr
}

func removeDir(dir string) error {
	if err := os.Remove(dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove run directory: %w", err)
	}
	return nil
}
