// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package httpclient

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const clientRequestDuration = "http.client.request.duration"

// ScopeName identifies the instrumentation scope of this package.
const ScopeName = "github.com/open-telemetry/opentelemetry-go-event-instrumentation/pkg/instrumenter/httpclient"

// ClientMetrics owns the http.client.request.duration histogram. The
// instrument aggregates concurrently recorded samples without caller
// synchronization.
type ClientMetrics struct {
	requestDuration metric.Float64Histogram
}

// NewClientMetrics creates the client request duration histogram on the
// given meter.
func NewClientMetrics(meter metric.Meter) (*ClientMetrics, error) {
	if meter == nil {
		return nil, errors.New("nil meter")
	}
	d, err := meter.Float64Histogram(
		clientRequestDuration,
		metric.WithDescription("Duration of HTTP client requests."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.075, 0.1, 0.25, 0.5, 0.75, 1, 2.5, 5, 7.5, 10),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", clientRequestDuration, err)
	}
	return &ClientMetrics{requestDuration: d}, nil
}

// RecordRequestDuration records one duration sample in seconds.
func (m *ClientMetrics) RecordRequestDuration(ctx context.Context, seconds float64, attrs []attribute.KeyValue) {
	if m == nil || m.requestDuration == nil {
		return
	}
	m.requestDuration.Record(ctx, seconds, metric.WithAttributeSet(attribute.NewSet(attrs...)))
}

var (
	defaultMetricsOnce sync.Once
	defaultMetrics     *ClientMetrics
)

// DefaultClientMetrics returns the process-wide ClientMetrics, created on
// first use from the global MeterProvider. A creation failure is reported
// to the OTel error handler and leaves recording a no-op.
func DefaultClientMetrics() *ClientMetrics {
	defaultMetricsOnce.Do(func() {
		m, err := NewClientMetrics(otel.GetMeterProvider().Meter(ScopeName))
		if err != nil {
			otel.Handle(err)
			return
		}
		defaultMetrics = m
	})
	return defaultMetrics
}
