// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package shared

import (
	"os"
	"slices"
	"strings"
)

// Instrumented checks if an instrumentation is enabled via environment
// variables.
//
// Environment variables (following the OTel JS pattern):
//   - OTEL_GO_ENABLED_INSTRUMENTATIONS: comma-separated list of enabled instrumentations (e.g., "nethttp,grpc")
//   - OTEL_GO_DISABLED_INSTRUMENTATIONS: comma-separated list of disabled instrumentations (e.g., "nethttp")
//
// Logic:
//  1. If OTEL_GO_ENABLED_INSTRUMENTATIONS is set, only those instrumentations are enabled
//  2. Then OTEL_GO_DISABLED_INSTRUMENTATIONS is applied to disable specific ones
//  3. If neither is set, all instrumentations are enabled by default
//
// Name matching is case-insensitive.
func Instrumented(instrumentationName string) bool {
	name := strings.ToLower(instrumentationName)

	if enabledList := os.Getenv("OTEL_GO_ENABLED_INSTRUMENTATIONS"); enabledList != "" {
		if !slices.Contains(parseInstrumentationList(enabledList), name) {
			return false
		}
	}

	if disabledList := os.Getenv("OTEL_GO_DISABLED_INSTRUMENTATIONS"); disabledList != "" {
		if slices.Contains(parseInstrumentationList(disabledList), name) {
			return false
		}
	}

	return true
}

// parseInstrumentationList parses a comma-separated list of instrumentation names.
func parseInstrumentationList(list string) []string {
	var result []string
	for _, item := range strings.Split(list, ",") {
		trimmed := strings.TrimSpace(strings.ToLower(item))
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
