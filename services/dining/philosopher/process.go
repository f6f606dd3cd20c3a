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

package philosopher

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/AleutianAI/dining/pkg/logging"
	"github.com/AleutianAI/dining/services/dining/eventlog"
	"github.com/AleutianAI/dining/services/dining/ring"
)

// Exit codes of an actor process.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// Main is the body of an actor process.
//
// # Description
//
// Installs SIGINT, SIGHUP and SIGTERM handlers that set the termination
// flag, attaches to the forks and the event log allocated by the
// coordinator, runs the meal cycle and detaches. Cancelling ctx also sets
// the flag. The shared resources themselves are never removed here.
//
// # Outputs
//
//   - int: ExitOK when the philosopher finished its meals or stopped on
//     request, ExitUsage for an invalid spec, ExitFailure otherwise.
func Main(ctx context.Context, spec Spec, logger *logging.Logger) int {
	if logger == nil {
		logger = logging.Discard()
	}
	if err := spec.Validate(); err != nil {
		logger.Error("invalid philosopher spec", "error", err)
		return ExitUsage
	}
	logger = logger.With("run_id", spec.RunID, "philosopher", spec.ID)

	var terminate atomic.Bool
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGHUP, syscall.SIGTERM)
	defer signal.Stop(signals)

	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case sig := <-signals:
				if terminate.CompareAndSwap(false, true) {
					logger.Info("termination requested", "signal", sig.String())
				}
			case <-ctx.Done():
				terminate.Store(true)
				return
			case <-done:
				return
			}
		}
	}()

	seat, err := ring.Sit(spec.RunDir, spec.ID, spec.Philosophers)
	if err != nil {
		logger.Error("attach forks", "error", err)
		return ExitFailure
	}
	defer func() {
		if err := seat.Close(); err != nil {
			logger.Warn("detach forks", "error", err)
		}
	}()

	log, err := eventlog.Open(eventlog.Options{
		RunDir: spec.RunDir,
		Output: spec.Output,
		Sync:   spec.Sync,
	})
	if err != nil {
		logger.Error("attach event log", "error", err)
		return ExitFailure
	}
	defer func() {
		if err := log.Close(); err != nil {
			logger.Warn("detach event log", "error", err)
		}
	}()

	logger.Debug("attached", "first_fork", seat.First(), "second_fork", seat.Second())

	p := New(spec, seat, log, logger)
	eaten, err := p.Run(terminate.Load)
	if err != nil {
		logger.Error("meal cycle failed", "meals", eaten, "error", err)
		return ExitFailure
	}
	logger.Debug("finished", "meals", eaten)
	return ExitOK
}
