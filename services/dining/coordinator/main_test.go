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

package coordinator

import (
	"context"
	"os"
	"strconv"
	"syscall"
	"testing"

	"github.com/AleutianAI/dining/pkg/logging"
	"github.com/AleutianAI/dining/services/dining/philosopher"
)

// Environment understood by the test binary when it runs as an actor.
const (
	envTestActor = "DINING_TEST_ACTOR"
	envCrashID   = "DINING_TEST_CRASH_ID"
)

// TestMain lets the test binary double as the actor executable: spawned
// with DINING_TEST_ACTOR=1 it runs one philosopher and exits.
func TestMain(m *testing.M) {
	if os.Getenv(envTestActor) == "1" {
		os.Exit(runTestActor())
	}
	os.Exit(m.Run())
}

func runTestActor() int {
	spec, err := philosopher.ParseSpec(os.Args[1:])
	if err != nil {
		return philosopher.ExitUsage
	}
	if crash, _ := strconv.Atoi(os.Getenv(envCrashID)); crash == spec.ID {
		_ = syscall.Kill(os.Getpid(), syscall.SIGKILL)
		select {}
	}
	return philosopher.Main(context.Background(), spec, logging.FromEnv("philosopher"))
}

// testSpawner re-executes the test binary as an actor.
func testSpawner(env ...string) ExecSpawner {
	return ExecSpawner{
		Path: os.Args[0],
		Env:  append([]string{envTestActor + "=1"}, env...),
	}
}
