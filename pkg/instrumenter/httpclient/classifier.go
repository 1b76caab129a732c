// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package httpclient

import "strconv"

// ErrorPolicy reports whether a response status code counts as an error
// outcome.
type ErrorPolicy func(statusCode int) bool

// DefaultErrorPolicy classifies 4xx and 5xx responses as errors, the
// client-role default of the HTTP semantic conventions.
func DefaultErrorPolicy(statusCode int) bool {
	return statusCode >= 400
}

// ErrorClassifier derives the error.type value for a finished request.
// The two branches are mutually exclusive. A received response is
// classified by the status policy alone, only a request that never
// produced a response consults the exception type recorded in the slot.
type ErrorClassifier struct {
	Policy ErrorPolicy
	Slot   ErrorTypeSlot
}

// Classify returns the error.type value for the request, or the empty
// string when the request does not classify as an error.
func (c *ErrorClassifier) Classify(id Identity, resp *ResponseFacts) string {
	if resp != nil {
		if c.Policy(resp.StatusCode) {
			return strconv.Itoa(resp.StatusCode)
		}
		return ""
	}
	if typeName, ok := c.Slot.GetErrorType(id); ok {
		return typeName
	}
	return ""
}
