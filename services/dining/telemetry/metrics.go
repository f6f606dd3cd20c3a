// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry exposes run metrics and a small HTTP status server.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Exit outcomes used as the "outcome" label of dining_actor_exits_total.
const (
	OutcomeCompleted  = "completed"
	OutcomeTerminated = "terminated"
	OutcomeAbnormal   = "abnormal"
)

// Termination sources used as the "source" label.
const (
	SourceSignal    = "signal"
	SourceActorExit = "actor_exit"
	SourceSpawn     = "spawn"
)

// Metrics holds the run metrics on a private registry.
//
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	actorsSpawned prometheus.Counter
	actorExits    *prometheus.CounterVec
	terminations  *prometheus.CounterVec
	events        prometheus.Gauge
	runDuration   prometheus.Histogram
}

// NewMetrics creates the metrics plus the Go runtime and process
// collectors on a new registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		actorsSpawned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "dining",
			Name:      "actors_spawned_total",
			Help:      "Philosopher processes started",
		}),
		actorExits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dining",
			Name:      "actor_exits_total",
			Help:      "Philosopher processes reaped, by outcome",
		}, []string{"outcome"}),
		terminations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dining",
			Name:      "termination_requests_total",
			Help:      "Termination requests that set the termination flag, by source",
		}, []string{"source"}),
		events: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "dining",
			Name:      "events_recorded",
			Help:      "Last sequence number written to the event log",
		}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "dining",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock time from allocation to teardown",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		}),
	}
}

// Registry returns the registry the metrics live on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ActorSpawned counts one started philosopher process.
func (m *Metrics) ActorSpawned() {
	if m == nil {
		return
	}
	m.actorsSpawned.Inc()
}

// ActorExited counts one reaped philosopher process.
func (m *Metrics) ActorExited(outcome string) {
	if m == nil {
		return
	}
	m.actorExits.WithLabelValues(outcome).Inc()
}

// TerminationRequested counts the request that set the termination flag.
func (m *Metrics) TerminationRequested(source string) {
	if m == nil {
		return
	}
	m.terminations.WithLabelValues(source).Inc()
}

// SetEvents publishes the current event counter value.
func (m *Metrics) SetEvents(last uint64) {
	if m == nil {
		return
	}
	m.events.Set(float64(last))
}

// ObserveRun records the duration of a finished run.
func (m *Metrics) ObserveRun(d time.Duration) {
	if m == nil {
		return
	}
	m.runDuration.Observe(d.Seconds())
}
