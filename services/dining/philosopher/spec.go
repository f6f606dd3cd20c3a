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

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	"github.com/AleutianAI/dining/services/dining/ring"
)

// ErrInvalidSpec is wrapped by every Spec validation failure.
var ErrInvalidSpec = errors.New("philosopher: invalid spec")

// Spec is everything an actor process needs to join a run. The coordinator
// renders it as command-line flags with Args and the actor parses it back
// with ParseSpec.
type Spec struct {
	// ID is the philosopher id, 1..Philosophers.
	ID int

	// Philosophers is the ring size N.
	Philosophers int

	// Meals is the number of full cycles to complete before exiting.
	Meals int

	// RunDir holds the fork locks, the log lock and the counter.
	RunDir string

	// Output is the event log file.
	Output string

	// ThinkMax and EatMax bound the random sleeps. Zero disables the sleep.
	ThinkMax time.Duration
	EatMax   time.Duration

	// Sync fsyncs the event log after every record.
	Sync bool

	// RunID tags diagnostic logs; it is not part of the event log.
	RunID string
}

// Flag names shared by BindFlags and Args.
const (
	flagID           = "id"
	flagPhilosophers = "philosophers"
	flagMeals        = "meals"
	flagRunDir       = "run-dir"
	flagOutput       = "output"
	flagThinkMax     = "think-max"
	flagEatMax       = "eat-max"
	flagSync         = "sync"
	flagRunID        = "run-id"
)

// BindFlags registers the actor flags on fs, writing into s.
func (s *Spec) BindFlags(fs *pflag.FlagSet) {
	fs.IntVar(&s.ID, flagID, 0, "philosopher id (1..philosophers)")
	fs.IntVar(&s.Philosophers, flagPhilosophers, 0, "number of philosophers in the ring")
	fs.IntVar(&s.Meals, flagMeals, 0, "meals to eat before exiting")
	fs.StringVar(&s.RunDir, flagRunDir, "", "run directory holding the shared resources")
	fs.StringVar(&s.Output, flagOutput, "", "event log file")
	fs.DurationVar(&s.ThinkMax, flagThinkMax, 0, "upper bound of a thinking pause")
	fs.DurationVar(&s.EatMax, flagEatMax, 0, "upper bound of an eating pause")
	fs.BoolVar(&s.Sync, flagSync, false, "fsync the event log after every record")
	fs.StringVar(&s.RunID, flagRunID, "", "run identifier for diagnostics")
}

// Args renders s as flags accepted by BindFlags.
func (s Spec) Args() []string {
	args := []string{
		"--" + flagID, strconv.Itoa(s.ID),
		"--" + flagPhilosophers, strconv.Itoa(s.Philosophers),
		"--" + flagMeals, strconv.Itoa(s.Meals),
		"--" + flagRunDir, s.RunDir,
		"--" + flagOutput, s.Output,
		"--" + flagThinkMax, s.ThinkMax.String(),
		"--" + flagEatMax, s.EatMax.String(),
	}
	if s.Sync {
		args = append(args, "--"+flagSync)
	}
	if s.RunID != "" {
		args = append(args, "--"+flagRunID, s.RunID)
	}
	return args
}

// ParseSpec parses actor flags produced by Args and validates the result.
func ParseSpec(args []string) (Spec, error) {
	var s Spec
	fs := pflag.NewFlagSet("philosopher", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	s.BindFlags(fs)
	if err := fs.Parse(args); err != nil {
		return Spec{}, fmt.Errorf("%w: %v", ErrInvalidSpec, err)
	}
	if fs.NArg() > 0 {
		return Spec{}, fmt.Errorf("%w: unexpected arguments %v", ErrInvalidSpec, fs.Args())
	}
	if err := s.Validate(); err != nil {
		return Spec{}, err
	}
	return s, nil
}

// Validate reports the first field outside its range.
func (s Spec) Validate() error {
	switch {
	case s.Philosophers < ring.MinSize:
		return fmt.Errorf("%w: philosophers %d < %d", ErrInvalidSpec, s.Philosophers, ring.MinSize)
	case s.ID < 1 || s.ID > s.Philosophers:
		return fmt.Errorf("%w: id %d outside 1..%d", ErrInvalidSpec, s.ID, s.Philosophers)
	case s.Meals < 1:
		return fmt.Errorf("%w: meals %d < 1", ErrInvalidSpec, s.Meals)
	case s.RunDir == "":
		return fmt.Errorf("%w: run dir not set", ErrInvalidSpec)
	case s.Output == "":
		return fmt.Errorf("%w: output not set", ErrInvalidSpec)
	case s.ThinkMax < 0 || s.EatMax < 0:
		return fmt.Errorf("%w: negative sleep bound", ErrInvalidSpec)
	}
	return nil
}
