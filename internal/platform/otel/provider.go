// Package otel wires opt-in OpenTelemetry tracing for Delve processes.
package otel

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Setup initialises OpenTelemetry tracing for the given service.
//
// Tracing is opt-in: when DELVE_OTEL_ENDPOINT is empty or DELVE_OTEL_ENABLED
// is "false", Setup returns a no-op shutdown function and no global provider
// is registered.
//
// The returned shutdown function flushes pending spans and should be deferred
// by the caller.
func Setup(ctx context.Context, serviceName string) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }

	if strings.EqualFold(os.Getenv("DELVE_OTEL_ENABLED"), "false") {
		return noop, nil
	}

	endpoint := os.Getenv("DELVE_OTEL_ENDPOINT")
	if endpoint == "" {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(endpoint),
	)
	if err != nil {
		return noop, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return noop, err
	}

	sampler, err := samplerFromEnv()
	if err != nil {
		return noop, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}

// samplerFromEnv reads DELVE_OTEL_SAMPLE_RATIO. Unset or 1 samples every
// trace; a ratio in (0, 1) samples that fraction, honoring the parent
// decision on child spans.
func samplerFromEnv() (sdktrace.Sampler, error) {
	raw := os.Getenv("DELVE_OTEL_SAMPLE_RATIO")
	if raw == "" {
		return sdktrace.AlwaysSample(), nil
	}
	ratio, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("parse DELVE_OTEL_SAMPLE_RATIO: %w", err)
	}
	if ratio < 0 || ratio > 1 {
		return nil, fmt.Errorf("DELVE_OTEL_SAMPLE_RATIO must be in [0, 1], got %v", ratio)
	}
	if ratio == 1 {
		return sdktrace.AlwaysSample(), nil
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio)), nil
}
