// Package cache provides a time-bounded cache for remote read results.
//
// # Overview
//
// Entries live in a shared key-value store under a namespace prefix
// (default "cache:"), one record per logical key. Each record is a JSON
// envelope:
//
//	{
//	  "data": {...},
//	  "timestamp": 1721037600000,
//	  "expiryTime": 1721038500000
//	}
//
// timestamp and expiryTime are Unix milliseconds. expiryTime is the only
// value consulted for freshness.
//
// # Expiry
//
// Expiry is lazy: a read that finds now > expiryTime deletes the record and
// reports Expired. There is no background sweep; Prune deletes every expired
// record in one pass when asked to.
//
// # Failure semantics
//
// The cache is an optimization. Storage failures are logged and reported as
// Degraded results, never as errors, so callers fall back to a live fetch.
// Malformed records are misses.
package cache

import (
	"encoding/json"
	"time"

	"github.com/theduckymomoo/HomeIQ---Smart-Energy-Security-Manager---96-Bulls-sub001/internal/core"
	"github.com/theduckymomoo/HomeIQ---Smart-Energy-Security-Manager---96-Bulls-sub001/internal/kvstore"
)

// Config configures a Manager.
type Config struct {
	// Store holds the cache records. It may be shared with other components
	// as long as their keys do not start with Prefix.
	Store kvstore.Store

	// Prefix namespaces cache keys. Defaults to core.CachePrefix.
	Prefix string

	// DefaultExpiry applies when Set is called with a non-positive expiry.
	// Defaults to core.DefaultCacheExpiry.
	DefaultExpiry time.Duration

	Clock   core.Clock
	Metrics Metrics
}

// Metrics receives cache activity. A nil Metrics disables recording.
type Metrics interface {
	RecordLookup(result string)
	RecordWrite(outcome string)
	RecordEvictions(n int)
}

// Outcome is the result of a cache write or bulk delete.
type Outcome int

const (
	// OutcomeOK means the store accepted every operation.
	OutcomeOK Outcome = iota
	// OutcomeDegraded means a storage failure was logged and swallowed.
	OutcomeDegraded
)

func (o Outcome) String() string {
	if o == OutcomeDegraded {
		return "degraded"
	}
	return "ok"
}

// Lookup is the result of a cache read.
type Lookup int

const (
	LookupMiss Lookup = iota
	LookupHit
	LookupExpired
	LookupDegraded
)

func (l Lookup) String() string {
	switch l {
	case LookupHit:
		return "hit"
	case LookupExpired:
		return "expired"
	case LookupDegraded:
		return "degraded"
	default:
		return "miss"
	}
}

// Found reports whether the lookup produced data.
func (l Lookup) Found() bool {
	return l == LookupHit
}

// Metadata describes a cache record without its payload.
type Metadata struct {
	Key       string        `json:"key"`
	CreatedAt time.Time     `json:"createdAt"`
	ExpiresAt time.Time     `json:"expiresAt"`
	Age       time.Duration `json:"age"`
	TTL       time.Duration `json:"ttl"` // negative once expired
	Expired   bool          `json:"expired"`
	Size      int           `json:"size"` // payload bytes
}

// entry is the persisted envelope.
type entry struct {
	Data       json.RawMessage `json:"data"`
	Timestamp  int64           `json:"timestamp"`
	ExpiryTime int64           `json:"expiryTime"`
}

func (e entry) createdAt() time.Time { return core.FromUnixMillis(e.Timestamp) }
func (e entry) expiresAt() time.Time { return core.FromUnixMillis(e.ExpiryTime) }

// expiredAt reports whether the entry is stale at now.
func (e entry) expiredAt(now time.Time) bool {
	return core.UnixMillis(now) > e.ExpiryTime
}
