// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package httpclient maps HTTP client request lifecycle events onto the
// stable semantic convention metric http.client.request.duration.
//
// The package is transport agnostic. An HTTP execution layer reports two
// kinds of events per request, an optional "unhandled-exception" followed
// by a terminal "stop", and supplies a Decoder that extracts request,
// response and exception facts from its own payload types. The Dispatcher
// turns each valid stop event into exactly one histogram sample.
package httpclient

import (
	"net/http"
	"strconv"
	"strings"
)

// Event names understood by the Dispatcher. Unknown names are ignored.
const (
	// EventStop marks the end of a request lifecycle, whether or not a
	// response was received.
	EventStop = "stop"
	// EventException reports an exception observed while the request was in
	// flight. For a single request it is always delivered before the
	// corresponding stop event.
	EventException = "unhandled-exception"
)

// Identity is a stable handle to one in-flight request. Correlation relies
// on identity equality, so two requests with identical field values must
// still compare unequal. A pointer to the execution layer's own request
// object satisfies this. The value must be comparable.
type Identity any

// RequestFacts is an immutable snapshot of a request taken at stop or
// exception time.
type RequestFacts struct {
	// Method is the request method as reported by the execution layer. It
	// is normalized against the known-method list when attributes are
	// built.
	Method string
	// URL is the destination of the request, nil when unknown.
	URL *URLFacts
}

// URLFacts describes the destination of a request.
type URLFacts struct {
	Host   string
	Scheme string
	// Port is the explicit port of the URL, or -1 when the URL does not
	// carry one.
	Port int
}

// ResponseFacts describes a received response. A nil *ResponseFacts means
// the request finished without one.
type ResponseFacts struct {
	// ProtocolVersion is the negotiated protocol version in semantic
	// convention form, see ProtocolVersion.
	ProtocolVersion string
	// StatusCode is the HTTP response status code.
	StatusCode int
}

// Decoder extracts facts from the opaque event payloads of one HTTP
// execution layer. Implementations must be safe for concurrent use.
type Decoder interface {
	// DecodeRequest returns the request identity and facts carried by a
	// stop or exception payload. ok is false when the payload does not
	// have the expected shape.
	DecodeRequest(payload any) (id Identity, facts RequestFacts, ok bool)
	// DecodeResponse returns the response facts carried by a stop payload.
	// ok is false when no response was received.
	DecodeResponse(payload any) (ResponseFacts, bool)
	// DecodeExceptionType returns the exception type identifier carried by
	// an exception payload. ok is false when the payload does not have the
	// expected shape.
	DecodeExceptionType(payload any) (string, bool)
}

// NormalizeHTTPMethod maps known HTTP methods to their canonical
// upper-case form. Unknown methods are returned unchanged.
func NormalizeHTTPMethod(method string) string {
	upper := strings.ToUpper(method)
	switch upper {
	case http.MethodConnect, http.MethodDelete, http.MethodGet, http.MethodHead,
		http.MethodOptions, http.MethodPatch, http.MethodPost, http.MethodPut, http.MethodTrace, "QUERY":
		return upper
	}
	return method
}

// ProtocolVersion maps a raw protocol version pair to the semantic
// convention network.protocol.version value. The well-known versions map
// to "1.0", "1.1", "2" and "3", anything else formats as "major.minor".
func ProtocolVersion(major, minor int) string {
	switch {
	case major == 1 && minor == 0:
		return "1.0"
	case major == 1 && minor == 1:
		return "1.1"
	case major == 2 && minor == 0:
		return "2"
	case major == 3 && minor == 0:
		return "3"
	}
	return strconv.Itoa(major) + "." + strconv.Itoa(minor)
}

// RequiredPort returns the port when it is explicit and non-default for
// the scheme, otherwise -1 to indicate the server.port attribute should
// be omitted.
func RequiredPort(scheme string, port int) int {
	if port <= 0 {
		return -1
	}
	switch scheme {
	case "http":
		if port == 80 {
			return -1
		}
	case "https":
		if port == 443 {
			return -1
		}
	}
	return port
}
