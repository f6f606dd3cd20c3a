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
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/dining/services/dining/philosopher"
)

// --- Global Command Variables ---
var (
	configPath   string
	philosophers int
	thinkMax     time.Duration
	eatMax       time.Duration
	outputPath   string
	runDir       string
	syncWrites   bool
	metricsAddr  string
	logLevel     string
	logJSON      bool
	traceExp     string
	traceAddr    string

	verifyPhilosophers int
	verifyMeals        int
	verifyPartial      bool

	watchFromStart bool

	actorSpec philosopher.Spec

	rootCmd = &cobra.Command{
		Use:   "dining",
		Short: "Dining philosophers as cooperating processes",
		Long: `dining runs N philosopher processes around a ring of N forks.
Forks are exclusive file locks, every state change is appended to a shared
event log with a gapless sequence number, and the coordinator cleans up all
shared resources however the run ends.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// --- Run ---
	runCmd = &cobra.Command{
		Use:   "run [meals]",
		Short: "Run one dining session; each philosopher eats [meals] meals",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runDining, // Defined in cmd_run.go
	}

	// --- Actor (spawned by run) ---
	philosopherCmd = &cobra.Command{
		Use:    "philosopher",
		Short:  "Run a single philosopher process (internal)",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE:   runPhilosopher, // Defined in cmd_philosopher.go
	}

	// --- Log tools ---
	verifyCmd = &cobra.Command{
		Use:   "verify [event log]",
		Short: "Check an event log for ordering, exclusion and completeness",
		Args:  cobra.ExactArgs(1),
		RunE:  runVerify, // Defined in cmd_verify.go
	}
	watchCmd = &cobra.Command{
		Use:   "watch [event log]",
		Short: "Print events as they are appended to a live event log",
		Args:  cobra.ExactArgs(1),
		RunE:  runWatch, // Defined in cmd_watch.go
	}

	// --- Configuration ---
	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Manage dining configuration files",
	}
	configInitCmd = &cobra.Command{
		Use:   "init [path]",
		Short: "Write a default configuration file (.yaml, .yml or .toml)",
		Args:  cobra.ExactArgs(1),
		RunE:  runConfigInit, // Defined in cmd_config.go
	}
)

func init() {
	runCmd.Flags().StringVarP(&configPath, "config", "c", "", "configuration file (.yaml, .yml or .toml)")
	runCmd.Flags().IntVarP(&philosophers, "philosophers", "n", 0, "number of philosophers (default 5)")
	runCmd.Flags().DurationVar(&thinkMax, "think-max", 0, "upper bound of a thinking pause (default 100ms)")
	runCmd.Flags().DurationVar(&eatMax, "eat-max", 0, "upper bound of an eating pause (default 100ms)")
	runCmd.Flags().StringVarP(&outputPath, "output", "o", "", "event log file (default philosophers.out)")
	runCmd.Flags().StringVar(&runDir, "run-dir", "", "directory for lock files and the counter (default $TMPDIR/dining.run)")
	runCmd.Flags().BoolVar(&syncWrites, "sync", false, "fsync the event log after every record")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics, /healthz and /status on this address")
	runCmd.Flags().StringVar(&logLevel, "log-level", "", "diagnostic log level: debug, info, warn, error")
	runCmd.Flags().BoolVar(&logJSON, "log-json", false, "diagnostic logs as JSON")
	runCmd.Flags().StringVar(&traceExp, "trace-exporter", "", "span exporter: none, stdout or otlp (default none)")
	runCmd.Flags().StringVar(&traceAddr, "trace-endpoint", "", "OTLP gRPC receiver for --trace-exporter=otlp (default localhost:4317)")

	actorSpec.BindFlags(philosopherCmd.Flags())

	verifyCmd.Flags().IntVarP(&verifyPhilosophers, "philosophers", "n", 5, "number of philosophers in the run")
	verifyCmd.Flags().IntVarP(&verifyMeals, "meals", "m", 0, "meals per philosopher (0: do not check counts)")
	verifyCmd.Flags().BoolVar(&verifyPartial, "partial", false, "accept a log from an interrupted run")

	watchCmd.Flags().BoolVar(&watchFromStart, "from-start", false, "print existing events before following")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError(cmd, err)
	})

	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(runCmd, philosopherCmd, verifyCmd, watchCmd, configCmd)
}
