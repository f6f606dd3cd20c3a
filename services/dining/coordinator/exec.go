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
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/AleutianAI/dining/services/dining/philosopher"
)

// ExecSpawner starts each actor as a separate OS process.
//
// # Description
//
// The command line is Path, then Args, then the flags of the actor's
// philosopher.Spec. With Path empty the current executable is used, which
// is how the dining binary re-executes itself as "dining philosopher ...".
type ExecSpawner struct {
	// Path is the actor executable. Default: os.Executable().
	Path string

	// Args come before the philosopher.Spec flags, e.g. {"philosopher"}.
	Args []string

	// Env is appended to the coordinator's environment.
	Env []string

	// Stdout and Stderr receive the actor's diagnostic output.
	// Default: the coordinator's own.
	Stdout io.Writer
	Stderr io.Writer
}

// Spawn starts the actor described by spec.
func (s ExecSpawner) Spawn(ctx context.Context, spec philosopher.Spec) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := s.Path
	if path == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("locate executable: %w", err)
		}
		path = exe
	}

	args := make([]string, 0, len(s.Args)+20)
	args = append(args, s.Args...)
	args = append(args, spec.Args()...)

	// Not CommandContext: termination is a request, delivered by Terminate.
	cmd := exec.Command(path, args...)
	cmd.Env = append(os.Environ(), s.Env...)
	// Own process group: a terminal interrupt reaches only the coordinator,
	// which forwards it as one Terminate per actor.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Stdout = s.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = s.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &execHandle{id: spec.ID, cmd: cmd}, nil
}

type execHandle struct {
	id     int
	cmd    *exec.Cmd
	once   sync.Once
	status ExitStatus
}

func (h *execHandle) ID() int { return h.id }

func (h *execHandle) PID() int { return h.cmd.Process.Pid }

func (h *execHandle) Wait() ExitStatus {
	h.once.Do(func() {
		err := h.cmd.Wait()
		h.status = exitStatus(h.cmd.ProcessState, err)
	})
	return h.status
}

func (h *execHandle) Terminate() error {
	err := h.cmd.Process.Signal(syscall.SIGTERM)
	if err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("terminate philosopher %d: %w", h.id, err)
	}
	return nil
}

func exitStatus(state *os.ProcessState, err error) ExitStatus {
	if state == nil {
		return ExitStatus{Code: -1, Err: err}
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return ExitStatus{Code: -1, Signal: ws.Signal()}
	}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return ExitStatus{Code: state.ExitCode(), Err: err}
	}
	return ExitStatus{Code: state.ExitCode()}
}
