// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package httpclient

import "sync"

// ErrorTypeSlot associates the exception type observed for an in-flight
// request with the request identity, to be read back at stop time when no
// response arrived. Implementations must be safe for concurrent use.
//
// Hosts whose request objects can carry auxiliary state may implement the
// slot on the request itself and avoid the shared map of the default
// implementation.
type ErrorTypeSlot interface {
	// SetErrorType records the exception type for the request. A second
	// write for the same identity overwrites the first.
	SetErrorType(id Identity, typeName string)
	// GetErrorType returns the recorded exception type. ok is false when
	// none was recorded.
	GetErrorType(id Identity) (typeName string, ok bool)
}

// ErrorTypeStore is the default ErrorTypeSlot, an identity-keyed map.
// GetErrorType consumes the entry it returns, so the store holds entries
// only for faulted requests that have not stopped yet and does not grow
// with process history.
type ErrorTypeStore struct {
	mu    sync.Mutex
	types map[Identity]string
}

// NewErrorTypeStore returns an empty store.
func NewErrorTypeStore() *ErrorTypeStore {
	return &ErrorTypeStore{types: make(map[Identity]string)}
}

func (s *ErrorTypeStore) SetErrorType(id Identity, typeName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.types[id] = typeName
}

func (s *ErrorTypeStore) GetErrorType(id Identity) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	typeName, ok := s.types[id]
	if ok {
		delete(s.types, id)
	}
	return typeName, ok
}

func (s *ErrorTypeStore) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.types)
}
