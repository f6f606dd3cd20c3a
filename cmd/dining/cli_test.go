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
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/dining/services/dining/eventlog"
)

func TestRun_CompletesAndVerifies(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "philosophers.out")
	runDir := filepath.Join(dir, "run")

	res := dining(t, "run", "2",
		"-n", "3",
		"--think-max", "1ms",
		"--eat-max", "1ms",
		"-o", out,
		"--run-dir", runDir,
		"--log-level", "error")
	require.Equal(t, exitOK, res.code, "stderr: %s", res.stderr)
	assert.Contains(t, res.stdout, "OK: run ")
	assert.Contains(t, res.stdout, "events=36")
	assert.Contains(t, res.stdout, "completed=3")
	assert.Contains(t, res.stdout, "abnormal=0")

	_, err := os.Stat(runDir)
	assert.True(t, os.IsNotExist(err), "run directory must be removed")

	events, err := eventlog.ReadFile(out)
	require.NoError(t, err)
	assert.Len(t, events, 36)

	res = dining(t, "verify", out, "-n", "3", "-m", "2")
	require.Equal(t, exitOK, res.code, "stdout: %s stderr: %s", res.stdout, res.stderr)
	assert.Contains(t, res.stdout, "OK: log is consistent")
	assert.Contains(t, res.stdout, "philosopher\tmeals")
	assert.Contains(t, res.stdout, "3\t2")
}

func TestRun_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "missing meals", args: []string{"run"}, want: "meal count"},
		{name: "not a number", args: []string{"run", "abc"}, want: "meal count"},
		{name: "zero", args: []string{"run", "0"}, want: "meal count"},
		{name: "signed", args: []string{"run", "+3"}, want: "meal count"},
		{name: "overflow", args: []string{"run", "99999999999999999999999"}, want: "meal count"},
		{name: "one philosopher", args: []string{"run", "1", "-n", "1"}, want: "Philosophers"},
		{name: "negative pause", args: []string{"run", "1", "--think-max", "-1s"}, want: "ThinkMax"},
		{name: "unknown flag", args: []string{"run", "1", "--bogus"}, want: "unknown flag"},
		{name: "too many args", args: []string{"run", "1", "2"}, want: "accepts at most 1 arg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runDir := filepath.Join(t.TempDir(), "run")
			args := append(tt.args, "--run-dir", runDir)
			res := dining(t, args...)

			assert.NotEqual(t, exitOK, res.code)
			assert.Contains(t, res.stderr, tt.want)
			_, err := os.Stat(runDir)
			assert.True(t, os.IsNotExist(err), "nothing may be allocated")
		})
	}
}

func TestRun_ConfigurationErrorsExitWithUsage(t *testing.T) {
	res := dining(t, "run", "abc")
	assert.Equal(t, exitUsage, res.code)
	assert.Contains(t, res.stderr, "Usage:")
}

func TestRun_AllocationFailure(t *testing.T) {
	dir := t.TempDir()
	runDir := filepath.Join(dir, "run")
	require.NoError(t, os.Mkdir(runDir, 0o755))

	res := dining(t, "run", "1", "-o", filepath.Join(dir, "out"), "--run-dir", runDir)
	assert.Equal(t, exitFailure, res.code)
	assert.Contains(t, res.stdout, "Allocation failed")

	_, err := os.Stat(runDir)
	assert.NoError(t, err, "a directory the run did not create is left alone")
}

func TestVerify_ReportsViolation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.out")
	log := "1: philosopher 1: becomes thinking\n" +
		"3: philosopher 2: becomes thinking\n"
	require.NoError(t, os.WriteFile(path, []byte(log), 0o644))

	res := dining(t, "verify", path, "-n", "2")
	assert.Equal(t, exitFailure, res.code)
	assert.Contains(t, res.stdout, "Violation at event 3")
}

func TestVerify_IncompleteLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.out")
	log := "1: philosopher 1: becomes thinking\n" +
		"2: philosopher 1: picks up a fork 1\n"
	require.NoError(t, os.WriteFile(path, []byte(log), 0o644))

	res := dining(t, "verify", path, "-n", "2", "-m", "1")
	assert.Equal(t, exitFailure, res.code)
	assert.Contains(t, res.stdout, "Verification failed")

	res = dining(t, "verify", path, "-n", "2", "-m", "1", "--partial")
	assert.Equal(t, exitOK, res.code, "stdout: %s", res.stdout)
	assert.Contains(t, res.stdout, "events=2")
}

func TestVerify_MalformedLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.out")
	require.NoError(t, os.WriteFile(path, []byte("hello\n"), 0o644))

	res := dining(t, "verify", path)
	assert.Equal(t, exitFailure, res.code)
	assert.Contains(t, res.stderr, "malformed line")
}

func TestVerify_RejectsBadFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.out")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	res := dining(t, "verify", path, "-n", "1")
	assert.Equal(t, exitUsage, res.code)
	assert.Contains(t, res.stderr, "--philosophers")
}

func TestConfigInit_ThenRun(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "dining.yaml")

	res := dining(t, "config", "init", cfgPath)
	require.Equal(t, exitOK, res.code, "stderr: %s", res.stderr)
	assert.Contains(t, res.stdout, "OK: wrote "+cfgPath)

	res = dining(t, "config", "init", cfgPath)
	assert.Equal(t, exitFailure, res.code, "existing files are not overwritten")

	res = dining(t, "config", "init", filepath.Join(dir, "dining.ini"))
	assert.Equal(t, exitUsage, res.code)

	out := filepath.Join(dir, "philosophers.out")
	res = dining(t, "run", "-c", cfgPath,
		"--think-max", "1ms",
		"--eat-max", "1ms",
		"-o", out,
		"--run-dir", filepath.Join(dir, "run"))
	require.Equal(t, exitOK, res.code, "stderr: %s", res.stderr)

	// The generated file asks for one meal from five philosophers.
	assert.Contains(t, res.stdout, "events=30")
}

func TestWatch_FollowsUntilRemoved(t *testing.T) {
	path := filepath.Join(t.TempDir(), "philosophers.out")
	log := "1: philosopher 1: becomes thinking\n" +
		"2: philosopher 1: picks up a fork 1\n"
	require.NoError(t, os.WriteFile(path, []byte(log), 0o644))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	cmd := diningCommand(ctx, "watch", "--from-start", path)
	stdout, err := cmd.StdoutPipe()
	require.NoError(t, err)
	require.NoError(t, cmd.Start())

	scanner := bufio.NewScanner(stdout)
	var lines []string
	for len(lines) < 2 && scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.Equal(t, []string{
		"1: philosopher 1: becomes thinking",
		"2: philosopher 1: picks up a fork 1",
	}, lines)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.WriteString("3: philosopher 1: picks up a fork 2\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.True(t, scanner.Scan())
	assert.Equal(t, "3: philosopher 1: picks up a fork 2", scanner.Text())

	require.NoError(t, os.Remove(path))
	var rest []string
	for scanner.Scan() {
		rest = append(rest, scanner.Text())
	}
	require.NoError(t, cmd.Wait())
	assert.Equal(t, "event log removed", strings.Join(rest, "\n"))
}

func TestRun_StdoutTraces(t *testing.T) {
	dir := t.TempDir()
	res := dining(t, "run", "1",
		"-n", "2",
		"--think-max", "0s",
		"--eat-max", "0s",
		"-o", filepath.Join(dir, "out"),
		"--run-dir", filepath.Join(dir, "run"),
		"--trace-exporter", "stdout")
	require.Equal(t, exitOK, res.code, "stderr: %s", res.stderr)
	assert.Contains(t, res.stderr, "coordinator.Run")
	assert.NotContains(t, res.stdout, "coordinator.Run", "spans stay off stdout")
}

func TestRun_TerminalInterruptIsCleanShutdown(t *testing.T) {
	// The interrupt goes to the whole process group, as Ctrl-C does, at
	// several points of actor startup.
	for _, delay := range []time.Duration{0, 10 * time.Millisecond, 30 * time.Millisecond, 200 * time.Millisecond} {
		t.Run(delay.String(), func(t *testing.T) {
			dir := t.TempDir()
			out := filepath.Join(dir, "philosophers.out")

			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			cmd := diningCommand(ctx, "run", "1000000",
				"-n", "5",
				"--think-max", "1ms",
				"--eat-max", "1ms",
				"-o", out,
				"--run-dir", filepath.Join(dir, "run"))
			cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
			var stdout, stderr bytes.Buffer
			cmd.Stdout = &stdout
			cmd.Stderr = &stderr
			require.NoError(t, cmd.Start())

			// The output exists once the coordinator handles signals.
			require.Eventually(t, func() bool {
				_, err := os.Stat(out)
				return err == nil
			}, 30*time.Second, time.Millisecond)
			time.Sleep(delay)
			require.NoError(t, syscall.Kill(-cmd.Process.Pid, syscall.SIGINT))

			require.NoError(t, cmd.Wait(), "stdout: %s stderr: %s", stdout.String(), stderr.String())
			assert.Contains(t, stdout.String(), "stopped on request")
			assert.Contains(t, stdout.String(), "abnormal=0")
			assert.NotContains(t, stdout.String(), "Abnormal exits")

			res := dining(t, "verify", out, "-n", "5", "-m", "1000000", "--partial")
			assert.Equal(t, exitOK, res.code, "stdout: %s", res.stdout)
		})
	}
}

func TestRun_KilledActorIsRecovered(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "philosophers.out")

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	cmd := diningCommand(ctx, "run", "1000000",
		"-n", "3",
		"--think-max", "1ms",
		"--eat-max", "1ms",
		"-o", out,
		"--run-dir", filepath.Join(dir, "run"))
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	require.NoError(t, cmd.Start())

	var victim int
	require.Eventually(t, func() bool {
		victim = actorPID(t, cmd.Process.Pid, "2")
		return victim != 0
	}, 30*time.Second, 5*time.Millisecond)
	require.NoError(t, syscall.Kill(victim, syscall.SIGKILL))

	require.NoError(t, cmd.Wait(), "stdout: %s stderr: %s", stdout.String(), stderr.String())
	assert.Contains(t, stdout.String(), "stopped after an abnormal exit")
	assert.Contains(t, stdout.String(), "abnormal=1")
	assert.Contains(t, stdout.String(), "Abnormal exits: ")
	assert.Contains(t, stdout.String(), "philosopher 2")
	_, err := os.Stat(filepath.Join(dir, "run"))
	assert.True(t, os.IsNotExist(err), "run directory must be removed")
}

// actorPID finds the philosopher child of parent started with --id id.
func actorPID(t *testing.T, parent int, id string) int {
	t.Helper()
	entries, err := os.ReadDir("/proc")
	if err != nil {
		t.Skip("needs /proc")
	}
	for _, e := range entries {
		var pid int
		if _, err := fmt.Sscanf(e.Name(), "%d", &pid); err != nil {
			continue
		}
		stat, err := os.ReadFile(filepath.Join("/proc", e.Name(), "stat"))
		if err != nil {
			continue
		}
		// Fields after the parenthesized command name: state, ppid, ...
		rest := string(stat[bytes.LastIndexByte(stat, ')')+1:])
		var state string
		var ppid int
		if _, err := fmt.Sscanf(rest, " %s %d", &state, &ppid); err != nil || ppid != parent {
			continue
		}
		cmdline, err := os.ReadFile(filepath.Join("/proc", e.Name(), "cmdline"))
		if err != nil {
			continue
		}
		argv := bytes.Split(cmdline, []byte{0})
		for i := 0; i+1 < len(argv); i++ {
			if string(argv[i]) == "--id" && string(argv[i+1]) == id {
				return pid
			}
		}
	}
	return 0
}
