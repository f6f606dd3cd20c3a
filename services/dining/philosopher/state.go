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

// State is a position in the actor's meal cycle.
type State int

const (
	StateThinking State = iota
	StateAcquiringFirstFork
	StateAcquiringSecondFork
	StateEating
	StateReleasingFirstFork
	StateReleasingSecondFork
	StateTerminated
)

var stateNames = [...]string{
	StateThinking:            "thinking",
	StateAcquiringFirstFork:  "acquiring_first_fork",
	StateAcquiringSecondFork: "acquiring_second_fork",
	StateEating:              "eating",
	StateReleasingFirstFork:  "releasing_first_fork",
	StateReleasingSecondFork: "releasing_second_fork",
	StateTerminated:          "terminated",
}

// String returns the snake_case state name.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}
