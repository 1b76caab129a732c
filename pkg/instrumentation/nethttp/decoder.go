// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package nethttp reports net/http client request lifecycle events to the
// event-to-metric engine and produces client spans for the wrapped round
// trips.
package nethttp

import (
	"net/http"

	"github.com/open-telemetry/opentelemetry-go-event-instrumentation/pkg/instrumenter/httpclient"
)

// RequestStopPayload carries the terminal lifecycle event of one request.
type RequestStopPayload struct {
	// Request is the request that stopped.
	Request *http.Request
	// Response is the received response, nil when the request failed
	// before one arrived.
	Response *http.Response
}

// RequestExceptionPayload carries the exception event of a request that
// failed in flight.
type RequestExceptionPayload struct {
	Request *http.Request
	Err     error
}

// Decoder extracts facts from net/http event payloads. The request
// identity is the *http.Request pointer, so the same request value must
// be used for the exception and stop events of one round trip.
type Decoder struct{}

var _ httpclient.Decoder = Decoder{}

func (Decoder) DecodeRequest(payload any) (httpclient.Identity, httpclient.RequestFacts, bool) {
	var req *http.Request
	switch p := payload.(type) {
	case RequestStopPayload:
		req = p.Request
	case RequestExceptionPayload:
		req = p.Request
	}
	if req == nil {
		return nil, httpclient.RequestFacts{}, false
	}
	return req, httpclient.RequestFacts{Method: req.Method, URL: urlFacts(req)}, true
}

func (Decoder) DecodeResponse(payload any) (httpclient.ResponseFacts, bool) {
	p, ok := payload.(RequestStopPayload)
	if !ok || p.Response == nil {
		return httpclient.ResponseFacts{}, false
	}
	return httpclient.ResponseFacts{
		ProtocolVersion: httpclient.ProtocolVersion(p.Response.ProtoMajor, p.Response.ProtoMinor),
		StatusCode:      p.Response.StatusCode,
	}, true
}

func (Decoder) DecodeExceptionType(payload any) (string, bool) {
	p, ok := payload.(RequestExceptionPayload)
	if !ok || p.Err == nil {
		return "", false
	}
	return errorTypeName(p.Err), true
}

// urlFacts derives the destination facts of a request, nil when the
// request carries no URL.
func urlFacts(req *http.Request) *httpclient.URLFacts {
	if req.URL == nil {
		return nil
	}
	host, port := SplitHostPort(req.URL.Host)
	if host == "" && port < 0 {
		host, port = SplitHostPort(req.Host)
	}
	return &httpclient.URLFacts{
		Host:   host,
		Scheme: scheme(req),
		Port:   port,
	}
}

// scheme returns the URL scheme of a request, falling back to the
// connection state when the URL does not carry one.
func scheme(req *http.Request) string {
	if req.URL != nil && req.URL.Scheme != "" {
		return req.URL.Scheme
	}
	if req.TLS != nil {
		return "https"
	}
	return "http"
}
