// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package httpclient

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/goleak"
)

type fakeRequest struct {
	method string
	url    *URLFacts
}

type fakeResponse struct {
	protoMajor int
	protoMinor int
	status     int
}

type stopPayload struct {
	req  *fakeRequest
	resp *fakeResponse
}

type exceptionPayload struct {
	req      *fakeRequest
	typeName string
}

type fakeDecoder struct{}

func (fakeDecoder) DecodeRequest(payload any) (Identity, RequestFacts, bool) {
	var req *fakeRequest
	switch p := payload.(type) {
	case stopPayload:
		req = p.req
	case exceptionPayload:
		req = p.req
	}
	if req == nil {
		return nil, RequestFacts{}, false
	}
	return req, RequestFacts{Method: req.method, URL: req.url}, true
}

func (fakeDecoder) DecodeResponse(payload any) (ResponseFacts, bool) {
	p, ok := payload.(stopPayload)
	if !ok || p.resp == nil {
		return ResponseFacts{}, false
	}
	return ResponseFacts{
		ProtocolVersion: ProtocolVersion(p.resp.protoMajor, p.resp.protoMinor),
		StatusCode:      p.resp.status,
	}, true
}

func (fakeDecoder) DecodeExceptionType(payload any) (string, bool) {
	p, ok := payload.(exceptionPayload)
	if !ok || p.typeName == "" {
		return "", false
	}
	return p.typeName, true
}

func newTestDispatcher(t *testing.T, opts ...Option) (*Dispatcher, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	opts = append([]Option{WithMeterProvider(mp)}, opts...)
	d, err := NewDispatcher(fakeDecoder{}, opts...)
	require.NoError(t, err)
	return d, reader
}

func requestDurationPoints(t *testing.T, reader *sdkmetric.ManualReader) []metricdata.HistogramDataPoint[float64] {
	t.Helper()
	rm := &metricdata.ResourceMetrics{}
	require.NoError(t, reader.Collect(context.Background(), rm))
	if len(rm.ScopeMetrics) == 0 || len(rm.ScopeMetrics[0].Metrics) == 0 {
		return nil
	}
	require.Equal(t, "http.client.request.duration", rm.ScopeMetrics[0].Metrics[0].Name)
	hist, ok := rm.ScopeMetrics[0].Metrics[0].Data.(metricdata.Histogram[float64])
	require.True(t, ok, "expected a float64 histogram")
	return hist.DataPoints
}

func attrsToMap(set attribute.Set) map[string]interface{} {
	m := make(map[string]interface{}, set.Len())
	for _, attr := range set.ToSlice() {
		m[string(attr.Key)] = attr.Value.AsInterface()
	}
	return m
}

func totalCount(points []metricdata.HistogramDataPoint[float64]) uint64 {
	var n uint64
	for _, dp := range points {
		n += dp.Count
	}
	return n
}

func TestNewDispatcherNilDecoder(t *testing.T) {
	_, err := NewDispatcher(nil)
	require.Error(t, err, "expected error for nil decoder, but got nil")
}

func TestDispatcherStopRecordsSample(t *testing.T) {
	d, reader := newTestDispatcher(t)
	ctx := context.Background()

	req := &fakeRequest{method: "get", url: &URLFacts{Host: "example.com", Scheme: "https", Port: 8443}}
	d.Handle(ctx, EventStop, stopPayload{req: req, resp: &fakeResponse{1, 1, 200}}, 250*time.Millisecond)

	points := requestDurationPoints(t, reader)
	require.Len(t, points, 1)
	assert.Equal(t, uint64(1), points[0].Count)
	assert.InDelta(t, 0.25, points[0].Sum, 1e-9)

	attrs := attrsToMap(points[0].Attributes)
	assert.Equal(t, "GET", attrs["http.request.method"])
	assert.Equal(t, "example.com", attrs["server.address"])
	assert.Equal(t, "https", attrs["url.scheme"])
	assert.Equal(t, int64(8443), attrs["server.port"])
	assert.Equal(t, "1.1", attrs["network.protocol.version"])
	assert.Equal(t, int64(200), attrs["http.response.status_code"])
	_, hasError := attrs["error.type"]
	assert.False(t, hasError, "successful response must not carry error.type")
}

func TestDispatcherDefaultPortOmitted(t *testing.T) {
	d, reader := newTestDispatcher(t)

	req := &fakeRequest{method: "GET", url: &URLFacts{Host: "example.com", Scheme: "https", Port: 443}}
	d.OnStop(context.Background(), stopPayload{req: req, resp: &fakeResponse{1, 1, 200}}, time.Millisecond)

	points := requestDurationPoints(t, reader)
	require.Len(t, points, 1)
	_, hasPort := attrsToMap(points[0].Attributes)["server.port"]
	assert.False(t, hasPort, "default https port must be omitted")
}

func TestDispatcherErrorStatus(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		wantErrorType interface{}
	}{
		{"internal server error", 500, "500"},
		{"service unavailable", 503, "503"},
		{"not found", 404, "404"},
		{"success", 200, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, reader := newTestDispatcher(t)

			req := &fakeRequest{method: "GET", url: &URLFacts{Host: "example.com", Scheme: "https", Port: -1}}
			d.OnStop(context.Background(), stopPayload{req: req, resp: &fakeResponse{1, 1, tt.status}}, time.Millisecond)

			points := requestDurationPoints(t, reader)
			require.Len(t, points, 1)
			attrs := attrsToMap(points[0].Attributes)
			assert.Equal(t, int64(tt.status), attrs["http.response.status_code"])
			if tt.wantErrorType != nil {
				assert.Equal(t, tt.wantErrorType, attrs["error.type"])
			} else {
				_, ok := attrs["error.type"]
				assert.False(t, ok, "status %d must not carry error.type", tt.status)
			}
		})
	}
}

func TestDispatcherExceptionThenStop(t *testing.T) {
	store := NewErrorTypeStore()
	d, reader := newTestDispatcher(t, WithErrorTypeSlot(store))
	ctx := context.Background()

	req := &fakeRequest{method: "GET", url: &URLFacts{Host: "example.com", Scheme: "https", Port: -1}}
	d.Handle(ctx, EventException, exceptionPayload{req: req, typeName: "TimeoutException"}, 0)
	d.Handle(ctx, EventStop, stopPayload{req: req}, 30*time.Second)

	points := requestDurationPoints(t, reader)
	require.Len(t, points, 1)
	assert.Equal(t, uint64(1), points[0].Count, "a faulted request still records exactly one sample")

	attrs := attrsToMap(points[0].Attributes)
	assert.Equal(t, "TimeoutException", attrs["error.type"])
	_, hasStatus := attrs["http.response.status_code"]
	assert.False(t, hasStatus, "a request without response must not carry a status code")
	_, hasProto := attrs["network.protocol.version"]
	assert.False(t, hasProto, "a request without response must not carry a protocol version")

	assert.Equal(t, 0, store.pending(), "the slot entry should be consumed at stop time")
}

func TestDispatcherExceptionAloneDoesNotRecord(t *testing.T) {
	d, reader := newTestDispatcher(t)

	req := &fakeRequest{method: "GET"}
	d.OnException(context.Background(), exceptionPayload{req: req, typeName: "ConnectException"})

	assert.Empty(t, requestDurationPoints(t, reader), "an exception event alone must not record")
}

func TestDispatcherAbortWithoutException(t *testing.T) {
	d, reader := newTestDispatcher(t)

	req := &fakeRequest{method: "GET", url: &URLFacts{Host: "example.com", Scheme: "https", Port: -1}}
	d.OnStop(context.Background(), stopPayload{req: req}, time.Millisecond)

	points := requestDurationPoints(t, reader)
	require.Len(t, points, 1)
	_, ok := attrsToMap(points[0].Attributes)["error.type"]
	assert.False(t, ok, "an abort without captured exception has no error.type")
}

func TestDispatcherEachValidStopRecords(t *testing.T) {
	d, reader := newTestDispatcher(t)
	ctx := context.Background()

	req := &fakeRequest{method: "GET", url: &URLFacts{Host: "example.com", Scheme: "https", Port: -1}}
	payload := stopPayload{req: req, resp: &fakeResponse{1, 1, 200}}
	d.OnStop(ctx, payload, time.Millisecond)
	d.OnStop(ctx, payload, time.Millisecond)

	points := requestDurationPoints(t, reader)
	assert.Equal(t, uint64(2), totalCount(points), "every valid stop event records one sample")
}

func TestDispatcherDropsMalformedPayloads(t *testing.T) {
	tests := []struct {
		name    string
		deliver func(*Dispatcher)
	}{
		{
			name: "stop without request",
			deliver: func(d *Dispatcher) {
				d.OnStop(context.Background(), stopPayload{}, time.Millisecond)
			},
		},
		{
			name: "stop with foreign payload",
			deliver: func(d *Dispatcher) {
				d.OnStop(context.Background(), "not a payload", time.Millisecond)
			},
		},
		{
			name: "stop with nil payload",
			deliver: func(d *Dispatcher) {
				d.OnStop(context.Background(), nil, time.Millisecond)
			},
		},
		{
			name: "exception without request",
			deliver: func(d *Dispatcher) {
				d.OnException(context.Background(), exceptionPayload{typeName: "TimeoutException"})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, reader := newTestDispatcher(t)
			tt.deliver(d)
			assert.Empty(t, requestDurationPoints(t, reader), "malformed payloads must be dropped")
		})
	}
}

func TestDispatcherExceptionWithoutTypeDropped(t *testing.T) {
	store := NewErrorTypeStore()
	d, reader := newTestDispatcher(t, WithErrorTypeSlot(store))
	ctx := context.Background()

	req := &fakeRequest{method: "GET", url: &URLFacts{Host: "example.com", Scheme: "https", Port: -1}}
	d.OnException(ctx, exceptionPayload{req: req})
	assert.Equal(t, 0, store.pending(), "an exception event without type must not write the slot")

	d.OnStop(ctx, stopPayload{req: req}, time.Millisecond)
	points := requestDurationPoints(t, reader)
	require.Len(t, points, 1)
	_, ok := attrsToMap(points[0].Attributes)["error.type"]
	assert.False(t, ok)
}

func TestDispatcherNegativeElapsedDropped(t *testing.T) {
	d, reader := newTestDispatcher(t)

	req := &fakeRequest{method: "GET", url: &URLFacts{Host: "example.com", Scheme: "https", Port: -1}}
	d.OnStop(context.Background(), stopPayload{req: req, resp: &fakeResponse{1, 1, 200}}, -time.Second)

	assert.Empty(t, requestDurationPoints(t, reader), "a negative duration must never be recorded")
}

func TestDispatcherUnknownEventIgnored(t *testing.T) {
	d, reader := newTestDispatcher(t)

	req := &fakeRequest{method: "GET"}
	d.Handle(context.Background(), "start", stopPayload{req: req}, time.Millisecond)
	d.Handle(context.Background(), "redirect", stopPayload{req: req}, time.Millisecond)

	assert.Empty(t, requestDurationPoints(t, reader))
}

func TestDispatcherCustomErrorPolicy(t *testing.T) {
	d, reader := newTestDispatcher(t, WithErrorPolicy(func(statusCode int) bool {
		return statusCode >= 500
	}))

	req := &fakeRequest{method: "GET", url: &URLFacts{Host: "example.com", Scheme: "https", Port: -1}}
	d.OnStop(context.Background(), stopPayload{req: req, resp: &fakeResponse{1, 1, 404}}, time.Millisecond)

	points := requestDurationPoints(t, reader)
	require.Len(t, points, 1)
	_, ok := attrsToMap(points[0].Attributes)["error.type"]
	assert.False(t, ok, "404 is not an error under a 5xx-only policy")
}

func TestDispatcherConcurrentRequests(t *testing.T) {
	defer goleak.VerifyNone(t)

	d, reader := newTestDispatcher(t)
	ctx := context.Background()
	const requests = 50

	var wg sync.WaitGroup
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := &fakeRequest{method: "GET", url: &URLFacts{Host: "example.com", Scheme: "https", Port: -1}}
			if i%2 == 0 {
				d.Handle(ctx, EventException, exceptionPayload{req: req, typeName: "TimeoutException"}, 0)
				d.Handle(ctx, EventStop, stopPayload{req: req}, time.Millisecond)
			} else {
				d.Handle(ctx, EventStop, stopPayload{req: req, resp: &fakeResponse{1, 1, 200}}, time.Millisecond)
			}
		}(i)
	}
	wg.Wait()

	points := requestDurationPoints(t, reader)
	assert.Equal(t, uint64(requests), totalCount(points), "every request records exactly one sample")
}
