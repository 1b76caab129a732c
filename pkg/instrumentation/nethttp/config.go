// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package nethttp

import (
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/open-telemetry/opentelemetry-go-event-instrumentation/pkg/instrumentation/shared"
	"github.com/open-telemetry/opentelemetry-go-event-instrumentation/pkg/instrumenter/httpclient"
)

type config struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	propagator     propagation.TextMapPropagator
	errorPolicy    httpclient.ErrorPolicy
	logger         *slog.Logger
}

// Option applies a configuration to the given config.
type Option interface {
	Apply(*config)
}

// OptionFunc provides a convenience wrapper for simple Options that can be
// represented as functions.
type OptionFunc func(c *config)

// Apply will apply the option to the config.
func (o OptionFunc) Apply(c *config) {
	o(c)
}

// WithTracerProvider specifies a tracer provider to use for creating a
// tracer. If none is specified, the global provider is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return OptionFunc(func(c *config) {
		c.tracerProvider = tp
	})
}

// WithMeterProvider specifies a meter provider to use for creating the
// request duration histogram. If none is specified, the global provider
// is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return OptionFunc(func(c *config) {
		c.meterProvider = mp
	})
}

// WithPropagator specifies a propagator for injecting the trace context
// into outbound request headers. If none is specified, the global
// propagator is used.
func WithPropagator(p propagation.TextMapPropagator) Option {
	return OptionFunc(func(c *config) {
		c.propagator = p
	})
}

// WithErrorPolicy specifies which response status codes classify as
// errors. If none is specified, 4xx and 5xx responses do.
func WithErrorPolicy(policy httpclient.ErrorPolicy) Option {
	return OptionFunc(func(c *config) {
		c.errorPolicy = policy
	})
}

// WithLogger specifies the diagnostic logger. If none is specified, the
// shared instrumentation logger is used.
func WithLogger(logger *slog.Logger) Option {
	return OptionFunc(func(c *config) {
		c.logger = logger
	})
}

func newConfig(opts ...Option) *config {
	c := &config{
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
		propagator:     otel.GetTextMapPropagator(),
		errorPolicy:    httpclient.DefaultErrorPolicy,
		logger:         shared.Logger(),
	}
	for _, opt := range opts {
		opt.Apply(c)
	}
	return c
}
