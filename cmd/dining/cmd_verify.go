// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/dining/pkg/ux"
	"github.com/AleutianAI/dining/services/dining/eventlog"
)

// runVerify is the RunE of "dining verify".
func runVerify(cmd *cobra.Command, args []string) error {
	if verifyPhilosophers < 2 {
		return usageError(cmd, fmt.Errorf("--philosophers must be at least 2, got %d", verifyPhilosophers))
	}
	if verifyMeals < 0 {
		return usageError(cmd, fmt.Errorf("--meals must not be negative, got %d", verifyMeals))
	}

	path := args[0]
	events, err := eventlog.ReadFile(path)
	if err != nil {
		return err
	}

	exp := eventlog.Expect{
		Philosophers: verifyPhilosophers,
		Meals:        verifyMeals,
		Complete:     verifyMeals > 0 && !verifyPartial,
	}
	report, verr := eventlog.Verify(events, exp)

	p := ux.NewPrinter(cmd.OutOrStdout(), ux.DetectPersonality(os.Stdout))
	p.Title("Event log " + path)
	rows := make([][]string, 0, verifyPhilosophers)
	for id := 1; id <= verifyPhilosophers; id++ {
		rows = append(rows, []string{strconv.Itoa(id), strconv.Itoa(report.Meals[id])})
	}
	p.Table([]string{"philosopher", "meals"}, rows)
	p.Summary(
		ux.Stat{Label: "events", Value: report.Events},
		ux.Stat{Label: "max eating", Value: report.MaxEating},
	)

	if verr != nil {
		var ve *eventlog.VerifyError
		if errors.As(verr, &ve) && ve.Seq > 0 {
			p.ErrorBox(fmt.Sprintf("Violation at event %d", ve.Seq), ve.Reason)
		} else {
			p.ErrorBox("Verification failed", verr.Error())
		}
		return silentExit(exitFailure)
	}
	p.Success("log is consistent")
	return nil
}
