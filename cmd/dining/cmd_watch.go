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
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/dining/pkg/logging"
	"github.com/AleutianAI/dining/pkg/ux"
	"github.com/AleutianAI/dining/services/dining/eventlog"
	"github.com/AleutianAI/dining/services/dining/follow"
)

// runWatch is the RunE of "dining watch".
func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGHUP, syscall.SIGTERM)
	defer stop()

	logger := logging.FromEnv("watch")
	defer logger.Close()

	p := ux.NewPrinter(cmd.OutOrStdout(), ux.DetectPersonality(os.Stdout))
	f := follow.New(args[0], logger)
	f.FromStart = watchFromStart

	err := f.Run(ctx, func(ev eventlog.Event) error {
		if p.Level() == ux.PersonalityMachine {
			p.Line(ev.String())
			return nil
		}
		p.Line(eventStyle(ev.Kind).Render(ev.String()))
		return nil
	})
	if errors.Is(err, follow.ErrRemoved) {
		p.Info("event log removed")
		return nil
	}
	return err
}

func eventStyle(k eventlog.Kind) lipgloss.Style {
	switch k {
	case eventlog.KindEating:
		return ux.Styles.Success
	case eventlog.KindPickUp:
		return ux.Styles.Subtitle
	case eventlog.KindRelease:
		return ux.Styles.Muted
	default:
		return lipgloss.NewStyle()
	}
}
