// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package httpclient

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// Dispatcher routes request lifecycle events to the correlation slot and
// the metric recorder. It keeps no per-request state of its own, so
// concurrent invocations for different requests do not interfere. Events
// of a single request must arrive in lifecycle order, exception before
// stop, which the execution layer guarantees.
type Dispatcher struct {
	logger        *slog.Logger
	decoder       Decoder
	classifier    ErrorClassifier
	metrics       *ClientMetrics
	meterProvider metric.MeterProvider
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the diagnostic logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithErrorPolicy replaces the status code error policy.
func WithErrorPolicy(policy ErrorPolicy) Option {
	return func(d *Dispatcher) { d.classifier.Policy = policy }
}

// WithErrorTypeSlot replaces the default correlation store.
func WithErrorTypeSlot(slot ErrorTypeSlot) Option {
	return func(d *Dispatcher) { d.classifier.Slot = slot }
}

// WithMeterProvider creates the histogram on the given provider instead
// of the process-wide default.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(d *Dispatcher) { d.meterProvider = mp }
}

// WithClientMetrics records on a prebuilt ClientMetrics.
func WithClientMetrics(m *ClientMetrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// NewDispatcher returns a Dispatcher that decodes payloads with decoder.
// Without options it records on the process-wide histogram, classifies
// 4xx and 5xx responses as errors and correlates exceptions through a
// fresh ErrorTypeStore.
func NewDispatcher(decoder Decoder, opts ...Option) (*Dispatcher, error) {
	if decoder == nil {
		return nil, errors.New("nil decoder")
	}
	d := &Dispatcher{
		logger:  slog.Default(),
		decoder: decoder,
		classifier: ErrorClassifier{
			Policy: DefaultErrorPolicy,
			Slot:   NewErrorTypeStore(),
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.classifier.Policy == nil {
		d.classifier.Policy = DefaultErrorPolicy
	}
	if d.classifier.Slot == nil {
		d.classifier.Slot = NewErrorTypeStore()
	}
	if d.metrics == nil {
		if d.meterProvider != nil {
			m, err := NewClientMetrics(d.meterProvider.Meter(ScopeName))
			if err != nil {
				return nil, err
			}
			d.metrics = m
		} else {
			d.metrics = DefaultClientMetrics()
		}
	}
	return d, nil
}

// Handle routes one lifecycle event. name selects the event kind, payload
// is decoded by the Decoder supplied at construction and elapsed is the
// request duration measured by the caller, meaningful for stop events
// only. Unknown event names are ignored.
func (d *Dispatcher) Handle(ctx context.Context, name string, payload any, elapsed time.Duration) {
	switch name {
	case EventStop:
		d.OnStop(ctx, payload, elapsed)
	case EventException:
		d.OnException(ctx, payload)
	default:
		d.logger.Debug("ignoring unknown event", "event", name)
	}
}

// OnException records the exception type of a faulted request for later
// correlation. It never records a metric. A payload with no decodable
// request or exception type violates the event contract and is dropped.
func (d *Dispatcher) OnException(ctx context.Context, payload any) {
	defer d.recovered(EventException)
	_ = ctx

	id, _, ok := d.decoder.DecodeRequest(payload)
	if !ok {
		d.logger.Warn("dropping event", "event", EventException, "reason", "no request in payload")
		return
	}
	typeName, ok := d.decoder.DecodeExceptionType(payload)
	if !ok {
		d.logger.Warn("dropping event", "event", EventException, "reason", "no exception in payload")
		return
	}
	d.classifier.Slot.SetErrorType(id, typeName)
}

// OnStop turns one stop event into exactly one metric sample. elapsed is
// the request duration measured by the caller's timer. A payload with no
// decodable request is dropped, as is a negative duration, which breaks
// the caller contract and must never be recorded.
func (d *Dispatcher) OnStop(ctx context.Context, payload any, elapsed time.Duration) {
	defer d.recovered(EventStop)

	id, req, ok := d.decoder.DecodeRequest(payload)
	if !ok {
		d.logger.Warn("dropping event", "event", EventStop, "reason", "no request in payload")
		return
	}
	if elapsed < 0 {
		d.logger.Warn("dropping event", "event", EventStop, "reason", "negative duration", "duration", elapsed)
		return
	}

	var resp *ResponseFacts
	if r, ok := d.decoder.DecodeResponse(payload); ok {
		resp = &r
	}
	errorType := d.classifier.Classify(id, resp)
	attrs := BuildMetricAttributes(req, resp, errorType)
	d.metrics.RecordRequestDuration(ctx, elapsed.Seconds(), attrs)
}

// recovered keeps a panic on the observability path away from the
// caller's request execution.
func (d *Dispatcher) recovered(event string) {
	if rec := recover(); rec != nil {
		d.logger.Error("panic while handling event", "event", event, "panic", rec)
	}
}
