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
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// TracerName names the tracer every dining span comes from.
const TracerName = "github.com/AleutianAI/dining"

// ErrUnknownExporter is returned by InitTracing for an unsupported exporter.
var ErrUnknownExporter = errors.New("telemetry: unknown trace exporter")

// TracingConfig selects the span exporter.
type TracingConfig struct {
	// ServiceName is the service.name resource attribute. Default: "dining".
	ServiceName string

	// Exporter is "none", "stdout" or "otlp".
	Exporter string

	// Endpoint is the OTLP gRPC receiver for Exporter "otlp".
	Endpoint string

	// Insecure disables TLS towards Endpoint.
	Insecure bool

	// Writer receives stdout spans. Default: os.Stderr, which keeps
	// stdout free for the run summary.
	Writer io.Writer
}

// InitTracing installs the global TracerProvider described by cfg.
//
// # Description
//
// With Exporter "none" nothing is installed and spans from Tracer() are
// no-ops. Otherwise spans are batched to the exporter until shutdown,
// which flushes them.
//
// # Outputs
//
//   - shutdown: Flushes and stops the provider. Always non-nil on success.
//   - error: ErrUnknownExporter or an exporter construction failure.
func InitTracing(ctx context.Context, cfg TracingConfig) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }

	var exporter sdktrace.SpanExporter
	switch cfg.Exporter {
	case "", "none":
		return noop, nil
	case "stdout":
		w := cfg.Writer
		if w == nil {
			w = os.Stderr
		}
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	case "otlp":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err = otlptracegrpc.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.Exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	name := cfg.ServiceName
	if name == "" {
		name = "dining"
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes("", attribute.String("service.name", name))),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// Tracer returns the dining tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}
