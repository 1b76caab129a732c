// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package nethttp

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/open-telemetry/opentelemetry-go-event-instrumentation/pkg/instrumentation/shared"
	"github.com/open-telemetry/opentelemetry-go-event-instrumentation/pkg/instrumenter/httpclient"
)

const (
	otelExporterPrefix     = "OTel OTLP Exporter Go"
	instrumentationName    = "github.com/open-telemetry/opentelemetry-go-event-instrumentation/pkg/instrumentation/nethttp"
	instrumentationVersion = "0.1.0"
	instrumentationKey     = "NETHTTP"
)

// transportEnabler controls whether transport instrumentation is enabled.
type transportEnabler struct{}

func (transportEnabler) Enable() bool {
	return shared.Instrumented(instrumentationKey)
}

var enabler = transportEnabler{}

// Transport is an http.RoundTripper that reports the lifecycle events of
// every outbound request and produces a client span per round trip. The
// wrapped transport performs the actual request.
type Transport struct {
	base       http.RoundTripper
	dispatcher *httpclient.Dispatcher
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
	logger     *slog.Logger
}

var _ http.RoundTripper = (*Transport)(nil)

// NewTransport wraps base with telemetry for outbound requests. If base
// is nil, http.DefaultTransport is used.
func NewTransport(base http.RoundTripper, opts ...Option) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	c := newConfig(opts...)

	t := &Transport{
		base: base,
		tracer: c.tracerProvider.Tracer(
			instrumentationName,
			trace.WithInstrumentationVersion(instrumentationVersion),
		),
		propagator: c.propagator,
		logger:     c.logger,
	}

	dispatcher, err := httpclient.NewDispatcher(Decoder{},
		httpclient.WithLogger(c.logger),
		httpclient.WithErrorPolicy(c.errorPolicy),
		httpclient.WithMeterProvider(c.meterProvider),
	)
	if err != nil {
		// The transport still traces and passes requests through.
		c.logger.Error("failed to create event dispatcher", "error", err)
		otel.Handle(err)
	}
	t.dispatcher = dispatcher

	return t
}

// NewClient returns a copy of c whose transport reports telemetry for
// every outbound request. If c is nil, http.DefaultClient is used.
func NewClient(c *http.Client, opts ...Option) *http.Client {
	if c == nil {
		c = http.DefaultClient
	}
	clone := *c
	clone.Transport = NewTransport(c.Transport, opts...)
	return &clone
}

// RoundTrip performs the request on the wrapped transport and reports an
// exception event when the round trip fails, always followed by a stop
// event carrying the elapsed time of this round trip.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !enabler.Enable() {
		t.logger.Debug("HTTP client instrumentation disabled")
		return t.base.RoundTrip(req)
	}

	// Requests of the OTLP exporters pass through unobserved, observing
	// them would feed the exporter its own traffic.
	if strings.HasPrefix(req.Header.Get("User-Agent"), otelExporterPrefix) {
		t.logger.Debug("skipping OTel exporter request", "user_agent", req.Header.Get("User-Agent"))
		return t.base.RoundTrip(req)
	}

	ctx, span := t.tracer.Start(req.Context(),
		req.Method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(requestTraceAttrs(req)...),
	)
	defer span.End()

	req = req.WithContext(ctx)
	t.propagator.Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	elapsed := time.Since(start)

	if err != nil {
		if t.dispatcher != nil {
			t.dispatcher.Handle(ctx, httpclient.EventException, RequestExceptionPayload{Request: req, Err: err}, 0)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(semconv.ErrorTypeKey.String(errorTypeName(err)))
	}
	if resp != nil {
		span.SetAttributes(semconv.HTTPResponseStatusCode(resp.StatusCode))
		if code, desc := spanStatus(resp.StatusCode); code != codes.Unset {
			span.SetStatus(code, desc)
		}
	}

	if t.dispatcher != nil {
		t.dispatcher.Handle(ctx, httpclient.EventStop, RequestStopPayload{Request: req, Response: resp}, elapsed)
	}
	return resp, err
}

// requestTraceAttrs returns the span attributes for an outbound request,
// the metric attribute set of the request plus url.full.
func requestTraceAttrs(req *http.Request) []attribute.KeyValue {
	facts := httpclient.RequestFacts{Method: req.Method, URL: urlFacts(req)}
	attrs := httpclient.BuildMetricAttributes(facts, nil, "")
	if req.URL != nil {
		// Remove any username/password info that may be in the URL.
		userinfo := req.URL.User
		req.URL.User = nil
		u := req.URL.String()
		req.URL.User = userinfo
		attrs = append(attrs, semconv.URLFull(u))
	}
	return attrs
}

// spanStatus returns the span status code for an HTTP response status
// code, the client-role mapping of the HTTP semantic conventions.
func spanStatus(code int) (codes.Code, string) {
	if code < 100 || code >= 600 {
		return codes.Error, fmt.Sprintf("Invalid HTTP status code %d", code)
	}
	if code >= 400 {
		return codes.Error, ""
	}
	return codes.Unset, ""
}
