package tracing

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel"
	otlpgrpc "go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Configure installs a global tracer provider exporting over OTLP, so the
// bridge's own work is traced like any other service. Setting
// OTEL_SDK_DISABLED=true leaves the no-op provider in place.
func Configure(ctx context.Context, logger logr.Logger, appName string, version string) (func(ctx context.Context) error, error) {
	otel.SetLogger(logger)

	if val := os.Getenv("OTEL_SDK_DISABLED"); val == "true" {
		return func(ctx context.Context) error { return nil }, nil
	}

	exporter, err := otlpgrpc.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create otlp exporter: %w", err)
	}

	res, err := Resource(ctx, appName, version)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}

// Resource describes this process. OTEL_RESOURCE_ATTRIBUTES and
// OTEL_SERVICE_NAME are applied over the defaults.
func Resource(ctx context.Context, appName string, version string) (*resource.Resource, error) {
	res, err := resource.New(
		ctx,
		resource.WithTelemetrySDK(),
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceName(appName),
			semconv.ServiceVersion(version),
		),
		resource.WithFromEnv(),
	)
	if err != nil && !errors.Is(err, resource.ErrPartialResource) {
		return nil, fmt.Errorf("failed to build resource: %w", err)
	}

	return res, nil
}
