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
	"context"
	"fmt"
	"syscall"

	"github.com/AleutianAI/dining/services/dining/philosopher"
)

// ExitStatus is how an actor process ended.
type ExitStatus struct {
	// Code is the exit code, -1 when the process died from a signal.
	Code int

	// Signal is the signal that killed the process, 0 if it exited.
	Signal syscall.Signal

	// Err is set when the process could not be waited for at all.
	Err error
}

// Success reports a normal exit with code 0.
func (s ExitStatus) Success() bool {
	return s.Err == nil && s.Signal == 0 && s.Code == 0
}

// String describes the status for diagnostics.
func (s ExitStatus) String() string {
	switch {
	case s.Err != nil:
		return fmt.Sprintf("wait failed: %v", s.Err)
	case s.Signal != 0:
		return fmt.Sprintf("killed by %s", s.Signal)
	default:
		return fmt.Sprintf("exit code %d", s.Code)
	}
}

// Handle is a running actor.
type Handle interface {
	// ID returns the philosopher id.
	ID() int

	// PID returns the OS process id, or 0 if there is none.
	PID() int

	// Wait blocks until the actor has exited and been reaped. It is called
	// exactly once.
	Wait() ExitStatus

	// Terminate asks the actor to stop after its current meal. Calling it
	// on an actor that already exited is not an error.
	Terminate() error
}

// Spawner starts actors.
type Spawner interface {
	Spawn(ctx context.Context, spec philosopher.Spec) (Handle, error)
}
