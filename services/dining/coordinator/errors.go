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
	"errors"
	"fmt"
)

var (
	// ErrAllocate indicates the shared resources could not be created.
	// Nothing is left allocated when it is returned.
	ErrAllocate = errors.New("coordinator: resource allocation failed")

	// ErrSpawn indicates an actor process could not be started.
	ErrSpawn = errors.New("coordinator: actor spawn failed")

	// ErrAbnormalExit indicates an actor failed or was killed.
	ErrAbnormalExit = errors.New("coordinator: actor exited abnormally")

	// ErrAlreadyRun indicates Run was called twice on one Coordinator.
	ErrAlreadyRun = errors.New("coordinator: already run")
)

// ActorExitError describes one abnormal actor exit.
type ActorExitError struct {
	ID     int
	PID    int
	Status ExitStatus
}

// Error returns a human-readable error message.
func (e *ActorExitError) Error() string {
	return fmt.Sprintf("philosopher %d (pid %d): %s", e.ID, e.PID, e.Status)
}

// Unwrap returns ErrAbnormalExit.
func (e *ActorExitError) Unwrap() error {
	return ErrAbnormalExit
}
