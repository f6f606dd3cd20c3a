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
	"slices"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/dining/pkg/logging"
	"github.com/AleutianAI/dining/services/dining/config"
	"github.com/AleutianAI/dining/services/dining/philosopher"
	"github.com/AleutianAI/dining/services/dining/telemetry"
)

// sampleInterval is how often the events gauge follows the counter.
const sampleInterval = 250 * time.Millisecond

// ActorResult is the fate of one actor.
type ActorResult struct {
	ID      int
	PID     int
	Status  ExitStatus
	Outcome string
}

// Result summarizes a finished run.
type Result struct {
	RunID string

	// Actors lists every spawned actor by id. Actors never spawned because
	// termination came first are absent.
	Actors []ActorResult

	// Events is the number of lines in the event log.
	Events uint64

	// Interrupted is true when the termination flag was raised.
	Interrupted bool

	// Abnormal lists the actors that failed or were killed from outside.
	// The run recovers from these: siblings are stopped, everything is
	// reaped and torn down, and Run does not report them as its error.
	Abnormal []*ActorExitError

	Duration time.Duration
}

// Coordinator allocates a run's resources, spawns the actors, supervises
// them and tears everything down.
//
// # Thread Safety
//
// Run may be called once. Status and RequestTermination are safe to call
// from any goroutine while Run is in progress.
type Coordinator struct {
	cfg     config.Config
	spawner Spawner
	logger  *logging.Logger
	metrics *telemetry.Metrics
	runID   string
	flag    TerminationFlag

	mu        sync.Mutex
	started   bool
	startedAt time.Time
	resources *Resources
	actors    map[int]*actor
	running   int
	results   []ActorResult
}

type actor struct {
	handle     Handle
	exited     bool
	terminated bool
}

// New creates a Coordinator. logger and metrics may be nil.
func New(cfg config.Config, spawner Spawner, logger *logging.Logger, metrics *telemetry.Metrics) *Coordinator {
	if logger == nil {
		logger = logging.Discard()
	}
	runID := uuid.NewString()
	return &Coordinator{
		cfg:     cfg,
		spawner: spawner,
		logger:  logger.With("run_id", runID),
		metrics: metrics,
		runID:   runID,
		actors:  make(map[int]*actor),
	}
}

// RunID returns the identifier passed to every actor.
func (c *Coordinator) RunID() string {
	return c.runID
}

// Run executes one complete run.
//
// # Description
//
//  1. Allocate resources (all-or-nothing).
//  2. Spawn philosophers 1..N, stopping early if termination is requested.
//  3. Reap every spawned actor. Cancelling ctx, an abnormal actor exit or
//     a spawn failure raises the termination flag, which sends Terminate
//     once to every actor still running.
//  4. Read the final event count and tear the resources down, exactly once,
//     on every path after a successful allocation.
//
// # Outputs
//
//   - Result: Valid on every path; partially filled on allocation failure.
//   - error: Wraps ErrAllocate or ErrSpawn, or reports a failed teardown.
//     nil for a clean run, one stopped on request and one that recovered
//     from abnormal actor exits (see Result.Abnormal).
func (c *Coordinator) Run(ctx context.Context) (result Result, err error) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return Result{RunID: c.runID}, ErrAlreadyRun
	}
	c.started = true
	c.startedAt = time.Now()
	c.mu.Unlock()

	result.RunID = c.runID
	n := c.cfg.Philosophers

	ctx, span := telemetry.Tracer().Start(ctx, "coordinator.Run", trace.WithAttributes(
		attribute.String("dining.run_id", c.runID),
		attribute.Int("dining.philosophers", n),
		attribute.Int("dining.meals", c.cfg.Meals),
	))
	defer func() {
		span.SetAttributes(
			attribute.Int64("dining.events", int64(result.Events)),
			attribute.Bool("dining.interrupted", result.Interrupted),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	res, err := Allocate(c.cfg.RunDir, c.cfg.Output, n)
	if err != nil {
		c.logger.Error("allocation failed", "error", err)
		return result, err
	}
	c.mu.Lock()
	c.resources = res
	c.mu.Unlock()
	c.logger.Info("resources allocated", "run_dir", res.RunDir, "output", res.Output, "philosophers", n)

	defer func() {
		if cerr := res.Close(); cerr != nil {
			c.logger.Error("teardown failed", "error", cerr)
			err = errors.Join(err, fmt.Errorf("teardown: %w", cerr))
		} else {
			c.logger.Info("resources released")
		}
		result.Duration = time.Since(c.startedAt)
		c.metrics.ObserveRun(result.Duration)
	}()

	g, gctx := errgroup.WithContext(ctx)
	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		<-gctx.Done()
		switch {
		case ctx.Err() != nil:
			c.RequestTermination(telemetry.SourceSignal)
		case errors.Is(context.Cause(gctx), ErrAbnormalExit):
			c.RequestTermination(telemetry.SourceActorExit)
		}
	}()
	if c.metrics != nil {
		go c.sample(watchDone)
	}

	var spawnErr error
	for id := 1; id <= n; id++ {
		if c.flag.IsSet() || ctx.Err() != nil {
			c.logger.Info("termination requested before all philosophers started", "spawned", id-1)
			break
		}
		h, err := c.spawner.Spawn(ctx, c.spec(id))
		if err != nil && ctx.Err() != nil {
			c.logger.Info("termination requested before all philosophers started", "spawned", id-1)
			break
		}
		if err != nil {
			spawnErr = fmt.Errorf("%w: philosopher %d: %w", ErrSpawn, id, err)
			c.logger.Error("spawn failed", "philosopher", id, "error", err)
			c.RequestTermination(telemetry.SourceSpawn)
			break
		}
		span.AddEvent("philosopher spawned", trace.WithAttributes(
			attribute.Int("dining.philosopher", id),
			attribute.Int("dining.pid", h.PID()),
		))
		c.register(h)
		g.Go(func() error { return c.reap(ctx, h) })
	}

	_ = g.Wait()
	<-watchDone

	c.mu.Lock()
	result.Actors = slices.Clone(c.results)
	c.mu.Unlock()
	slices.SortFunc(result.Actors, func(a, b ActorResult) int { return a.ID - b.ID })
	result.Interrupted = c.flag.IsSet()

	if events, lerr := res.Events(); lerr == nil {
		result.Events = events
		c.metrics.SetEvents(events)
	}

	for _, a := range result.Actors {
		if a.Outcome == telemetry.OutcomeAbnormal {
			exitErr := &ActorExitError{ID: a.ID, PID: a.PID, Status: a.Status}
			result.Abnormal = append(result.Abnormal, exitErr)
			span.AddEvent("philosopher exited abnormally", trace.WithAttributes(
				attribute.Int("dining.philosopher", a.ID),
				attribute.String("dining.status", a.Status.String()),
			))
		}
	}
	c.logger.Info("run finished",
		"actors", len(result.Actors),
		"events", result.Events,
		"interrupted", result.Interrupted,
		"abnormal", len(result.Abnormal))
	return result, spawnErr
}

// RequestTermination raises the termination flag and asks every running
// actor to stop. Only the first request has any effect.
func (c *Coordinator) RequestTermination(source string) {
	if !c.flag.Set(source) {
		return
	}
	c.metrics.TerminationRequested(source)
	c.logger.Warn("termination requested", "source", source)

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, a := range c.actors {
		c.terminateLocked(a)
	}
}

// Status returns a snapshot for the status server.
func (c *Coordinator) Status() telemetry.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := telemetry.Status{
		RunID:        c.runID,
		Philosophers: c.cfg.Philosophers,
		Spawned:      len(c.actors),
		Running:      c.running,
		Terminating:  c.flag.IsSet(),
		Reason:       c.flag.Reason(),
		StartedAt:    c.startedAt,
	}
	if c.resources != nil {
		if events, err := c.resources.Events(); err == nil {
			st.Events = events
		}
	}
	return st
}

func (c *Coordinator) spec(id int) philosopher.Spec {
	return philosopher.Spec{
		ID:           id,
		Philosophers: c.cfg.Philosophers,
		Meals:        c.cfg.Meals,
		RunDir:       c.cfg.RunDir,
		Output:       c.cfg.Output,
		ThinkMax:     c.cfg.ThinkMax,
		EatMax:       c.cfg.EatMax,
		Sync:         c.cfg.Sync,
		RunID:        c.runID,
	}
}

func (c *Coordinator) register(h Handle) {
	c.metrics.ActorSpawned()
	c.logger.Debug("philosopher started", "philosopher", h.ID(), "pid", h.PID())

	c.mu.Lock()
	defer c.mu.Unlock()
	a := &actor{handle: h}
	c.actors[h.ID()] = a
	c.running++
	if c.flag.IsSet() {
		c.terminateLocked(a)
	}
}

func (c *Coordinator) terminateLocked(a *actor) {
	if a.exited || a.terminated {
		return
	}
	a.terminated = true
	if err := a.handle.Terminate(); err != nil {
		c.logger.Warn("terminate failed", "philosopher", a.handle.ID(), "error", err)
	}
}

// reap waits for one actor. An abnormal exit is returned as an error so
// the group context is cancelled and the watcher raises the flag.
//
// An actor that died of a termination signal after ctx was cancelled got
// the operator's interrupt itself; the flag is raised before classifying
// so that death counts as requested.
func (c *Coordinator) reap(ctx context.Context, h Handle) error {
	st := h.Wait()
	if st.Err == nil && isTerminationSignal(st.Signal) && ctx.Err() != nil {
		c.RequestTermination(telemetry.SourceSignal)
	}
	outcome := c.classify(st)
	c.metrics.ActorExited(outcome)

	c.mu.Lock()
	if a := c.actors[h.ID()]; a != nil {
		a.exited = true
	}
	c.running--
	c.results = append(c.results, ActorResult{ID: h.ID(), PID: h.PID(), Status: st, Outcome: outcome})
	c.mu.Unlock()

	if outcome == telemetry.OutcomeAbnormal {
		c.logger.Warn("philosopher exited abnormally", "philosopher", h.ID(), "pid", h.PID(), "status", st.String())
		return &ActorExitError{ID: h.ID(), PID: h.PID(), Status: st}
	}
	c.logger.Debug("philosopher exited", "philosopher", h.ID(), "outcome", outcome)
	return nil
}

// classify maps an exit status to a metrics outcome. Death by a
// termination signal counts as requested only once the flag is raised.
func (c *Coordinator) classify(st ExitStatus) string {
	switch {
	case st.Success():
		return telemetry.OutcomeCompleted
	case st.Err == nil && c.flag.IsSet() && isTerminationSignal(st.Signal):
		return telemetry.OutcomeTerminated
	default:
		return telemetry.OutcomeAbnormal
	}
}

func isTerminationSignal(sig syscall.Signal) bool {
	return sig == syscall.SIGTERM || sig == syscall.SIGINT || sig == syscall.SIGHUP
}

func (c *Coordinator) sample(done <-chan struct{}) {
	ticker := time.NewTicker(sampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.mu.Lock()
			res := c.resources
			c.mu.Unlock()
			if events, err := res.Events(); err == nil {
				c.metrics.SetEvents(events)
			}
		}
	}
}
