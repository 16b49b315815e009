// Package backend provides the remote data collaborators the sync
// coordinator replays queued actions against.
//
// A Backend exposes named collections (appliances, profiles, automations)
// supporting insert, filtered update and filtered delete. Three
// implementations exist:
//
//   - RESTClient talks to the hosted BaaS over its PostgREST-style API.
//   - GormBackend writes to a SQLite or PostgreSQL database directly.
//   - MemoryBackend keeps rows in memory and records every call, for tests.
package backend

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// ErrNotFound is returned by backends that can tell when an update or
// delete matched no rows.
var ErrNotFound = errors.New("no matching record")

// Filter is a set of column = value conditions, all of which must hold.
type Filter map[string]any

// Keys returns the filter columns in sorted order.
func (f Filter) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Matches reports whether row satisfies every condition. Values are
// compared by their printed form so that 7 and 7.0 from JSON agree.
func (f Filter) Matches(row map[string]any) bool {
	for k, want := range f {
		got, ok := row[k]
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

// Backend is the remote collaborator contract.
type Backend interface {
	Insert(ctx context.Context, collection string, record map[string]any) error
	Update(ctx context.Context, collection string, filter Filter, values map[string]any) error
	Delete(ctx context.Context, collection string, filter Filter) error
}

// Op names a backend operation.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Call records one backend invocation.
type Call struct {
	Op         Op
	Collection string
	Filter     Filter
	Values     map[string]any // record for inserts
}

// APIError is returned when the REST API answers with an error status.
type APIError struct {
	StatusCode int
	Code       string // PostgREST error code, if any
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API error (HTTP %d, %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("API error (HTTP %d): %s", e.StatusCode, e.Message)
}

// Retryable reports whether the request may succeed if repeated.
func (e *APIError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}
