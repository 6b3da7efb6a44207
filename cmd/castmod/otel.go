package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

// configOTEL exports sweep, HTTP client and database spans over OTLP HTTP when OTEL_EXPORTER_OTLP_ENDPOINT is set
// (eg, http://localhost:4318). Other OTEL_EXPORTER_OTLP_* variables are read by the exporter itself.
//
// The returned func flushes pending spans, and is a no-op when tracing is off.
func configOTEL(serviceName, version string) func() {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		return func() {}
	}
	logger := slog.Default().With("system", "otel", "endpoint", endpoint)

	exp, err := otlptracehttp.New(context.Background())
	if err != nil {
		logger.Error("failed to create trace exporter, tracing disabled", "err", err)
		return func() {}
	}

	attrs := []attribute.KeyValue{
		semconv.ServiceNameKey.String(serviceName),
		semconv.ServiceVersionKey.String(version),
	}
	if env := os.Getenv("ENVIRONMENT"); env != "" {
		// "env" is what DataDog looks for
		attrs = append(attrs, attribute.String("env", env), attribute.String("environment", env))
	}
	tp := tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(exp),
		tracesdk.WithResource(resource.NewWithAttributes(semconv.SchemaURL, attrs...)),
	)
	otel.SetTracerProvider(tp)
	logger.Info("exporting traces")

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("failed to flush traces", "err", err)
		}
	}
}
