// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package httpclient

import (
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
)

// BuildMetricAttributes returns the metric attributes for a finished
// request. resp is nil when no response was received and errorType is
// empty when the request did not classify as an error.
//
// The attribute order is fixed: http.request.method, server.address,
// url.scheme, server.port, network.protocol.version,
// http.response.status_code, error.type. The URL attributes are omitted
// when the URL is unknown, the port when it is default for the scheme,
// the response attributes when resp is nil and error.type when errorType
// is empty.
func BuildMetricAttributes(req RequestFacts, resp *ResponseFacts, errorType string) []attribute.KeyValue {
	num := 1 // method

	port := -1
	if req.URL != nil {
		num += 2 // server.address, url.scheme
		port = RequiredPort(req.URL.Scheme, req.URL.Port)
		if port > 0 {
			num++
		}
	}
	if resp != nil {
		num += 2 // network.protocol.version, http.response.status_code
	}
	if errorType != "" {
		num++
	}

	attrs := make([]attribute.KeyValue, 0, num)
	attrs = append(attrs, semconv.HTTPRequestMethodKey.String(NormalizeHTTPMethod(req.Method)))
	if req.URL != nil {
		attrs = append(attrs,
			semconv.ServerAddress(req.URL.Host),
			semconv.URLScheme(req.URL.Scheme),
		)
		if port > 0 {
			attrs = append(attrs, semconv.ServerPort(port))
		}
	}
	if resp != nil {
		attrs = append(attrs,
			semconv.NetworkProtocolVersion(resp.ProtocolVersion),
			semconv.HTTPResponseStatusCode(resp.StatusCode),
		)
	}
	if errorType != "" {
		attrs = append(attrs, semconv.ErrorTypeKey.String(errorType))
	}
	return attrs
}
