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
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/dining/pkg/logging"
)

// Status is the live view of a run served on /status.
type Status struct {
	RunID        string    `json:"run_id"`
	Philosophers int       `json:"philosophers"`
	Spawned      int       `json:"spawned"`
	Running      int       `json:"running"`
	Events       uint64    `json:"events"`
	Terminating  bool      `json:"terminating"`
	Reason       string    `json:"reason,omitempty"`
	StartedAt    time.Time `json:"started_at"`
}

// StatusFunc returns the current Status.
type StatusFunc func() Status

// Server serves /metrics, /healthz and /status.
type Server struct {
	engine   *gin.Engine
	srv      *http.Server
	listener net.Listener
	logger   *logging.Logger
}

// NewServer builds the routes. status may be nil, in which case /status
// answers 503.
func NewServer(addr string, metrics *Metrics, status StatusFunc, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(otelgin.Middleware("dining"))

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/status", func(c *gin.Context) {
		if status == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no run in progress"})
			return
		}
		c.JSON(http.StatusOK, status())
	})
	if reg := metrics.Registry(); reg != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))
	}

	return &Server{
		engine: engine,
		srv: &http.Server{
			Addr:              addr,
			Handler:           engine,
			ReadHeaderTimeout: 5 * time.Second,
			ErrorLog:          slog.NewLogLogger(logger.Slog().Handler(), slog.LevelWarn),
		},
		logger: logger,
	}
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start binds the listen address and serves in the background. Binding
// errors are returned synchronously.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("status server listen on %s: %w", s.srv.Addr, err)
	}
	s.listener = ln
	s.logger.Info("status server listening", "addr", ln.Addr().String())

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status server stopped", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address once started, the configured one before.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.srv.Addr
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.listener == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
