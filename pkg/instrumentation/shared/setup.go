// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package shared provides the OpenTelemetry SDK bootstrap and the pieces
// common to all instrumentation packages, the logger and the environment
// based enable/disable switches.
package shared

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/exporters/autoexport"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
)

const (
	defaultTraceBatchTimeout = 5 * time.Second
	defaultTraceBatchSize    = 512
)

var (
	logger         *slog.Logger
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	initOnce       sync.Once
)

func init() {
	// The logger must exist at package load time so instrumentation
	// packages can log before the SDK is set up.
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(),
	}))
}

// Config identifies the service reporting telemetry.
type Config struct {
	ServiceName    string
	ServiceVersion string
}

// SetupOTelSDK initializes the global OpenTelemetry SDK. It is safe to
// call multiple times, only the first call initializes.
//
// Exporters are configured from the standard environment variables:
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint (e.g., http://localhost:4317)
//   - OTEL_EXPORTER_OTLP_TRACES_ENDPOINT: traces-specific endpoint
//   - OTEL_EXPORTER_OTLP_METRICS_ENDPOINT: metrics-specific endpoint
//   - OTEL_SERVICE_NAME: service name, overrides Config.ServiceName
//   - OTEL_LOG_LEVEL: log level (debug, info, warn, error)
func SetupOTelSDK(cfg Config) error {
	var setupErr error
	initOnce.Do(func() {
		// A panic here must not take down the host application.
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("panic during OpenTelemetry setup", "panic", rec)
			}
		}()

		setupErr = setupOpenTelemetry(cfg)
		if setupErr != nil {
			logger.Error("failed to setup OpenTelemetry", "error", setupErr)
			return
		}

		setupSignalHandler()

		if err := StartRuntimeMetrics(); err != nil {
			logger.Warn("failed to start runtime metrics", "error", err)
		}
	})
	return setupErr
}

// Logger returns the package logger.
func Logger() *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger
}

// logLevel returns the log level from the OTEL_LOG_LEVEL environment variable.
func logLevel() slog.Level {
	switch os.Getenv("OTEL_LOG_LEVEL") {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func setupOpenTelemetry(cfg Config) error {
	ctx := context.Background()

	// WithFromEnv goes last so OTEL_SERVICE_NAME and
	// OTEL_RESOURCE_ATTRIBUTES override code configuration.
	resourceOptions := []resource.Option{
		resource.WithProcess(),
		resource.WithOS(),
		resource.WithContainer(),
		resource.WithHost(),
	}

	serviceName := os.Getenv("OTEL_SERVICE_NAME")
	if serviceName == "" {
		serviceName = cfg.ServiceName
	}

	attrs := []attribute.KeyValue{
		semconv.ServiceNameKey.String(serviceName),
	}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersionKey.String(cfg.ServiceVersion))
	}
	resourceOptions = append(resourceOptions, resource.WithAttributes(attrs...))
	resourceOptions = append(resourceOptions, resource.WithFromEnv())

	res, err := resource.New(ctx, resourceOptions...)
	if err != nil {
		logger.Warn("failed to create resource", "error", err)
		res = resource.Default()
	}

	if err := setupTraceProvider(ctx, res); err != nil {
		logger.Warn("failed to setup trace provider", "error", err)
	}

	if err := setupMeterProvider(ctx, res); err != nil {
		logger.Warn("failed to setup meter provider", "error", err)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("OpenTelemetry initialized", "service_name", serviceName)
	return nil
}

// setupTraceProvider creates and registers the global trace provider.
func setupTraceProvider(ctx context.Context, res *resource.Resource) error {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		endpoint = os.Getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT")
	}
	if endpoint == "" {
		logger.Debug("no OTLP endpoint configured, skipping trace provider setup")
		return nil
	}

	// autoexport selects the exporter from OTEL_EXPORTER_OTLP_PROTOCOL,
	// defaulting to http/protobuf.
	traceExporter, err := autoexport.NewSpanExporter(ctx)
	if err != nil {
		return err
	}

	tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(traceExporter,
			sdktrace.WithBatchTimeout(defaultTraceBatchTimeout),
			sdktrace.WithMaxExportBatchSize(defaultTraceBatchSize),
		),
	)
	otel.SetTracerProvider(tracerProvider)

	logger.Info("trace provider initialized", "endpoint", endpoint)
	return nil
}

// setupMeterProvider creates and registers the global meter provider.
func setupMeterProvider(ctx context.Context, res *resource.Resource) error {
	metricReader, err := autoexport.NewMetricReader(ctx)
	if err != nil {
		return err
	}

	meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(metricReader),
	)
	otel.SetMeterProvider(meterProvider)

	logger.Info("meter provider initialized with auto-export")
	return nil
}

// Shutdown flushes and stops the providers registered by SetupOTelSDK.
func Shutdown(ctx context.Context) error {
	var err error

	if tracerProvider != nil {
		if shutdownErr := tracerProvider.Shutdown(ctx); shutdownErr != nil {
			Logger().Error("failed to shutdown tracer provider", "error", shutdownErr)
			err = shutdownErr
		}
	}

	if meterProvider != nil {
		if shutdownErr := meterProvider.Shutdown(ctx); shutdownErr != nil {
			Logger().Error("failed to shutdown meter provider", "error", shutdownErr)
			err = shutdownErr
		}
	}

	return err
}

// setupSignalHandler shuts the SDK down on interrupt so telemetry is
// flushed before the application exits.
func setupSignalHandler() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)

	go func() {
		sig := <-sigCh
		logger.Info("received signal, initiating graceful shutdown", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := Shutdown(ctx); err != nil {
			logger.Error("error during shutdown", "error", err)
		} else {
			logger.Info("OpenTelemetry SDK shutdown completed successfully")
		}

		signal.Reset(os.Interrupt)
		os.Exit(0)
	}()
}
