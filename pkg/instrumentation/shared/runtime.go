// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package shared

import (
	"sync"

	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
)

var runtimeMetricsOnce sync.Once

// StartRuntimeMetrics enables Go runtime metrics collection. It follows
// the same enable/disable switches as the instrumentation packages, so
// setting OTEL_GO_DISABLED_INSTRUMENTATIONS=runtimemetrics turns it off.
//
// It is safe to call multiple times, only the first call starts the
// collection. A returned error is non-fatal.
func StartRuntimeMetrics() error {
	var startErr error

	runtimeMetricsOnce.Do(func() {
		if !Instrumented("runtimemetrics") {
			logger.Debug("runtime metrics disabled via environment variable")
			return
		}

		mp := otel.GetMeterProvider()
		if err := runtime.Start(runtime.WithMeterProvider(mp)); err != nil {
			logger.Warn("failed to start runtime metrics", "error", err)
			startErr = err
			return
		}

		logger.Info("runtime metrics enabled")
	})

	return startErr
}
