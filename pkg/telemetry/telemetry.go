// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry initializes OpenTelemetry tracing for the gateway and
// its companion binaries.
//
// Spans are exported over OTLP/gRPC when an endpoint is configured, written
// to a stream when Stdout is set, and dropped otherwise. W3C trace context
// is propagated in every case so that a downstream collector can stitch the
// gateway and the reasoning backend into one trace.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// ErrNilContext is returned by Init when ctx is nil.
var ErrNilContext = errors.New("telemetry: nil context")

// Config controls which exporter Init installs.
type Config struct {
	// ServiceName identifies this binary in traces.
	ServiceName string

	// ServiceVersion is attached to the resource.
	ServiceVersion string

	// Endpoint is the OTLP gRPC collector address (host:port). It wins over
	// Stdout.
	Endpoint string

	// Stdout exports spans as pretty-printed JSON to Output.
	Stdout bool

	// Output receives stdout spans. Defaults to os.Stdout.
	Output io.Writer
}

// Init installs the global TracerProvider and propagator.
//
// # Description
//
// After Init returns, otel.Tracer can be used throughout the process. With
// neither Endpoint nor Stdout set no provider is installed; the global
// no-op provider stays in place and the returned shutdown does nothing.
//
// # Inputs
//
//   - ctx: Context for exporter construction
//   - cfg: Exporter selection and service identity
//
// # Outputs
//
//   - func(context.Context) error: Flushes and stops the exporter. Must be called.
//   - error: Non-nil if the exporter could not be created
//
// # Example
//
//	shutdown, err := telemetry.Init(ctx, telemetry.Config{ServiceName: "tutorgate-gateway", Endpoint: "otel:4317"})
//	if err != nil {
//	    return err
//	}
//	defer shutdown(context.Background())
//
// # Thread Safety
//
// Call once at startup.
func Init(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	noop := func(context.Context) error { return nil }

	var (
		exporter sdktrace.SpanExporter
		err      error
	)
	switch {
	case cfg.Endpoint != "":
		exporter, err = newOTLPExporter(ctx, cfg.Endpoint)
	case cfg.Stdout:
		out := cfg.Output
		if out == nil {
			out = os.Stdout
		}
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(out), stdouttrace.WithPrettyPrint())
	default:
		return noop, nil
	}
	if err != nil {
		return nil, fmt.Errorf("create exporter: %w", err)
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(cfg.ServiceName),
		semconv.ServiceVersionKey.String(cfg.ServiceVersion),
	)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

func newOTLPExporter(ctx context.Context, endpoint string) (sdktrace.SpanExporter, error) {
	conn, err := grpc.NewClient(endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial collector: %w", err)
	}
	return otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
}

// InjectContext writes the span context of ctx into outbound headers.
func InjectContext(ctx context.Context, headers http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(headers))
}

// ExtractContext reads an inbound span context from headers.
func ExtractContext(ctx context.Context, headers http.Header) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(headers))
}
