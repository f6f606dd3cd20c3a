// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

/*
Package coordinator runs one dining session: it owns the shared resources
and the lifetimes of the philosopher processes.

# Lifecycle

	coord := coordinator.New(cfg, coordinator.ExecSpawner{Args: []string{"philosopher"}}, logger, metrics)
	result, err := coord.Run(ctx)

Run allocates the run directory, counter, log lock, forks and event log
file all-or-nothing, spawns one process per philosopher, reaps all of them
and tears the resources down exactly once. The event log file survives.

# Termination

The termination flag is raised by the first of: ctx cancellation (the CLI
cancels on SIGINT, SIGHUP or SIGTERM), an abnormal actor exit, or a spawn
failure. Raising it sends SIGTERM once to every running actor. Actors stop
between meals; one blocked on a fork finishes its meal first.

# Exit classification

An actor exiting with code 0 completed. One killed by a termination signal
after the flag was raised, or after ctx was cancelled, was terminated.
Anything else is abnormal: it raises the flag, and once every actor has been
reaped and the resources released it is listed in Result.Abnormal as an
*ActorExitError wrapping ErrAbnormalExit. The run recovers from it, so Run
does not return it.

Actors run in their own process groups. A terminal interrupt reaches only
the coordinator, which forwards it.
*/
package coordinator
