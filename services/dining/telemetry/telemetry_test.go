// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// =============================================================================
// Metrics Tests
// =============================================================================

func TestMetrics_Record(t *testing.T) {
	m := NewMetrics()

	m.ActorSpawned()
	m.ActorSpawned()
	m.ActorExited(OutcomeCompleted)
	m.ActorExited(OutcomeAbnormal)
	m.TerminationRequested(SourceActorExit)
	m.SetEvents(30)
	m.ObserveRun(time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.actorsSpawned))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.actorExits.WithLabelValues(OutcomeAbnormal)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.terminations.WithLabelValues(SourceActorExit)))
	assert.Equal(t, 30.0, testutil.ToFloat64(m.events))
	assert.Equal(t, 1, testutil.CollectAndCount(m.runDuration))
}

func TestMetrics_NilIsNoOp(t *testing.T) {
	var m *Metrics
	m.ActorSpawned()
	m.ActorExited(OutcomeCompleted)
	m.TerminationRequested(SourceSignal)
	m.SetEvents(1)
	m.ObserveRun(time.Second)
	assert.Nil(t, m.Registry())
}

// =============================================================================
// Server Tests
// =============================================================================

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodGet, path, nil)
	require.NoError(t, err)
	h.ServeHTTP(w, req)
	return w
}

func TestServer_Healthz(t *testing.T) {
	s := NewServer(":0", nil, nil, nil)

	w := get(t, s.Handler(), "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestServer_Status(t *testing.T) {
	started := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewServer(":0", nil, func() Status {
		return Status{RunID: "abc", Philosophers: 5, Spawned: 5, Running: 3, Events: 12, StartedAt: started}
	}, nil)

	w := get(t, s.Handler(), "/status")
	require.Equal(t, http.StatusOK, w.Code)

	var got Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "abc", got.RunID)
	assert.Equal(t, 3, got.Running)
	assert.Equal(t, uint64(12), got.Events)
	assert.True(t, got.StartedAt.Equal(started))
}

func TestServer_StatusUnavailable(t *testing.T) {
	s := NewServer(":0", nil, nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, s.Handler(), "/status").Code)
}

func TestServer_Metrics(t *testing.T) {
	m := NewMetrics()
	m.ActorSpawned()
	s := NewServer(":0", m, nil, nil)

	w := get(t, s.Handler(), "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "dining_actors_spawned_total 1")
}

func TestServer_StartAndShutdown(t *testing.T) {
	s := NewServer("127.0.0.1:0", NewMetrics(), nil, nil)
	require.NoError(t, s.Start())

	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "ok")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
}
