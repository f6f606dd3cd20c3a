// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package philosopher implements the actor side of the dining run: the
// meal-cycle state machine and the entrypoint of an actor process.
//
// An actor process is started by the coordinator with the flags rendered by
// Spec.Args. It opens its own descriptors on its two forks and on the event
// log, runs Philosopher.Run, and exits. Termination requests arrive as
// SIGINT, SIGHUP or SIGTERM and are honoured between meals only.
package philosopher
