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
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/dining/pkg/logging"
	"github.com/AleutianAI/dining/pkg/ux"
	"github.com/AleutianAI/dining/services/dining/config"
	"github.com/AleutianAI/dining/services/dining/coordinator"
	"github.com/AleutianAI/dining/services/dining/telemetry"
)

// shutdownTimeout bounds the status server shutdown after a run.
const shutdownTimeout = 5 * time.Second

// runDining is the RunE of "dining run".
func runDining(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return usageError(cmd, err)
	}

	level, _ := logging.ParseLevel(cfg.Log.Level)
	logger := logging.New(logging.Config{
		Level:   level,
		Service: "coordinator",
		JSON:    cfg.Log.JSON,
		LogDir:  os.Getenv(logging.EnvDir),
		Output:  cmd.ErrOrStderr(),
	})
	defer logger.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGHUP, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx, telemetry.TracingConfig{
		Exporter: cfg.Trace.Exporter,
		Endpoint: cfg.Trace.Endpoint,
		Insecure: true,
		Writer:   cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("trace flush failed", "error", err)
		}
	}()

	metrics := telemetry.NewMetrics()
	spawner := coordinator.ExecSpawner{
		Args: []string{"philosopher"},
		Env: []string{
			logging.EnvLevel + "=" + logger.Level().String(),
			logging.EnvJSON + "=" + strconv.FormatBool(cfg.Log.JSON),
		},
	}
	coord := coordinator.New(cfg, spawner, logger, metrics)

	if cfg.MetricsAddr != "" {
		srv := telemetry.NewServer(cfg.MetricsAddr, metrics, coord.Status, logger)
		if err := srv.Start(); err != nil {
			return fmt.Errorf("status server: %w", err)
		}
		logger.Info("status server listening", "addr", srv.Addr())
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(sctx); err != nil {
				logger.Warn("status server shutdown failed", "error", err)
			}
		}()
	}

	logger.Info("starting run",
		"philosophers", cfg.Philosophers,
		"meals", cfg.Meals,
		"output", cfg.Output,
		"run_dir", cfg.RunDir)
	result, runErr := coord.Run(ctx)

	printRunSummary(ux.NewPrinter(cmd.OutOrStdout(), ux.DetectPersonality(os.Stdout)), cfg, result, runErr)
	if runErr != nil {
		return silentExit(exitFailure)
	}
	return nil
}

// resolveConfig layers defaults, the optional config file, flags and the
// meal-count argument, then validates the result.
func resolveConfig(cmd *cobra.Command, args []string) (config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("philosophers") {
		cfg.Philosophers = philosophers
	}
	if flags.Changed("think-max") {
		cfg.ThinkMax = thinkMax
	}
	if flags.Changed("eat-max") {
		cfg.EatMax = eatMax
	}
	if flags.Changed("output") {
		cfg.Output = outputPath
	}
	if flags.Changed("run-dir") {
		cfg.RunDir = runDir
	}
	if flags.Changed("sync") {
		cfg.Sync = syncWrites
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = metricsAddr
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if flags.Changed("log-json") {
		cfg.Log.JSON = logJSON
	}
	if flags.Changed("trace-exporter") {
		cfg.Trace.Exporter = traceExp
	}
	if flags.Changed("trace-endpoint") {
		cfg.Trace.Endpoint = traceAddr
	}

	if len(args) == 1 {
		meals, err := config.ParseMeals(args[0])
		if err != nil {
			return cfg, err
		}
		cfg.Meals = meals
	}
	if cfg.Meals == 0 {
		return cfg, fmt.Errorf("%w: missing", config.ErrInvalidMeals)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func printRunSummary(p *ux.Printer, cfg config.Config, result coordinator.Result, runErr error) {
	completed, terminated, abnormal := 0, 0, 0
	for _, a := range result.Actors {
		switch a.Outcome {
		case telemetry.OutcomeCompleted:
			completed++
		case telemetry.OutcomeTerminated:
			terminated++
		default:
			abnormal++
		}
	}

	switch {
	case errors.Is(runErr, coordinator.ErrAllocate):
		p.ErrorBox("Allocation failed", runErr.Error())
		return
	case runErr != nil:
		p.ErrorBox("Run failed", runErr.Error())
	case len(result.Abnormal) > 0:
		p.Warning(fmt.Sprintf("run %s stopped after an abnormal exit", result.RunID))
	case result.Interrupted:
		p.Warning(fmt.Sprintf("run %s stopped on request", result.RunID))
	default:
		p.Success(fmt.Sprintf("run %s complete", result.RunID))
	}
	p.Summary(
		ux.Stat{Label: "events", Value: result.Events},
		ux.Stat{Label: "completed", Value: completed},
		ux.Stat{Label: "terminated", Value: terminated},
		ux.Stat{Label: "abnormal", Value: abnormal},
		ux.Stat{Label: "seconds", Value: fmt.Sprintf("%.2f", result.Duration.Seconds())},
	)
	if len(result.Abnormal) > 0 {
		lines := make([]string, len(result.Abnormal))
		for i, e := range result.Abnormal {
			lines[i] = e.Error()
		}
		p.Box("Abnormal exits", strings.Join(lines, "\n"))
	}
	p.Info("event log: " + cfg.Output)
}
