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

package main

import (
	"github.com/spf13/cobra"

	"github.com/AleutianAI/dining/pkg/logging"
	"github.com/AleutianAI/dining/services/dining/philosopher"
)

// runPhilosopher is the RunE of the hidden "dining philosopher" command
// that the coordinator spawns once per seat.
func runPhilosopher(cmd *cobra.Command, _ []string) error {
	logger := logging.FromEnv("philosopher")
	defer logger.Close()

	if code := philosopher.Main(cmd.Context(), actorSpec, logger); code != philosopher.ExitOK {
		return silentExit(code)
	}
	return nil
}
