package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/theduckymomoo/HomeIQ---Smart-Energy-Security-Manager---96-Bulls-sub001/internal/core"
	"github.com/theduckymomoo/HomeIQ---Smart-Energy-Security-Manager---96-Bulls-sub001/internal/kvstore"
	"github.com/theduckymomoo/HomeIQ---Smart-Energy-Security-Manager---96-Bulls-sub001/internal/logger"
)

// Manager serves recently fetched data from the store within a freshness
// window, expiring stale records on read.
//
// A Manager is safe for concurrent use; it keeps no state of its own beyond
// its configuration.
type Manager struct {
	store         kvstore.Store
	prefix        string
	defaultExpiry time.Duration
	now           core.Clock
	metrics       Metrics
}

// NewManager creates a cache manager. If cfg.Store is nil, an in-memory
// store is used.
func NewManager(cfg Config) *Manager {
	if cfg.Store == nil {
		cfg.Store = kvstore.NewMemoryStore()
	}
	if cfg.Prefix == "" {
		cfg.Prefix = core.CachePrefix
	}
	if cfg.DefaultExpiry <= 0 {
		cfg.DefaultExpiry = core.DefaultCacheExpiry
	}
	return &Manager{
		store:         cfg.Store,
		prefix:        cfg.Prefix,
		defaultExpiry: cfg.DefaultExpiry,
		now:           cfg.Clock.OrSystem(),
		metrics:       cfg.Metrics,
	}
}

func (m *Manager) storeKey(key string) string {
	return m.prefix + key
}

// Set stores data under key for expiry, replacing any previous record.
// A non-positive expiry uses the default.
func (m *Manager) Set(ctx context.Context, key string, data any, expiry time.Duration) Outcome {
	outcome := m.set(ctx, key, data, expiry)
	if m.metrics != nil {
		m.metrics.RecordWrite(outcome.String())
	}
	return outcome
}

func (m *Manager) set(ctx context.Context, key string, data any, expiry time.Duration) Outcome {
	if expiry <= 0 {
		expiry = m.defaultExpiry
	}

	payload, err := json.Marshal(data)
	if err != nil {
		logger.WarnCtx(ctx, "Cache payload not serializable", logger.KeyKey, key, logger.KeyError, err)
		return OutcomeDegraded
	}

	now := m.now()
	created, expires := core.UnixMillis(now), core.UnixMillis(now.Add(expiry))
	// Sub-millisecond expiries still land strictly after the timestamp.
	if expires <= created {
		expires = created + 1
	}
	raw, err := json.Marshal(entry{
		Data:       payload,
		Timestamp:  created,
		ExpiryTime: expires,
	})
	if err != nil {
		logger.WarnCtx(ctx, "Cache entry not serializable", logger.KeyKey, key, logger.KeyError, err)
		return OutcomeDegraded
	}

	if err := m.store.Set(ctx, m.storeKey(key), string(raw)); err != nil {
		logger.WarnCtx(ctx, "Cache write failed", logger.KeyKey, key, logger.KeyError, err)
		return OutcomeDegraded
	}
	logger.DebugCtx(ctx, "Cached", logger.KeyKey, key, logger.KeyTTL, expiry.String(), logger.KeyBytes, len(payload))
	return OutcomeOK
}

// Get decodes the record for key into dst. dst is only written on LookupHit;
// a nil dst turns Get into a freshness check.
//
// An expired record is deleted before Get returns LookupExpired.
func (m *Manager) Get(ctx context.Context, key string, dst any) Lookup {
	result := m.get(ctx, key, dst)
	if m.metrics != nil {
		m.metrics.RecordLookup(result.String())
	}
	return result
}

func (m *Manager) get(ctx context.Context, key string, dst any) Lookup {
	e, result := m.read(ctx, key)
	if result != LookupHit {
		return result
	}

	if e.expiredAt(m.now()) {
		if err := m.store.Remove(ctx, m.storeKey(key)); err != nil {
			logger.WarnCtx(ctx, "Cache eviction failed", logger.KeyKey, key, logger.KeyError, err)
		} else if m.metrics != nil {
			m.metrics.RecordEvictions(1)
		}
		logger.DebugCtx(ctx, "Cache entry expired", logger.KeyKey, key, logger.KeyExpired, true)
		return LookupExpired
	}

	if dst != nil {
		if err := json.Unmarshal(e.Data, dst); err != nil {
			logger.WarnCtx(ctx, "Cached payload does not fit destination", logger.KeyKey, key, logger.KeyError, err)
			return LookupMiss
		}
	}
	logger.DebugCtx(ctx, "Cache hit", logger.KeyKey, key, logger.KeyCacheHit, true)
	return LookupHit
}

// read loads and decodes the envelope for key without checking expiry.
// It returns LookupHit when an envelope was decoded.
func (m *Manager) read(ctx context.Context, key string) (entry, Lookup) {
	raw, ok, err := m.store.Get(ctx, m.storeKey(key))
	if err != nil {
		logger.WarnCtx(ctx, "Cache read failed", logger.KeyKey, key, logger.KeyError, err)
		return entry{}, LookupDegraded
	}
	if !ok {
		return entry{}, LookupMiss
	}

	var e entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		logger.DebugCtx(ctx, "Malformed cache entry", logger.KeyKey, key, logger.KeyError, err)
		return entry{}, LookupMiss
	}
	return e, LookupHit
}

// GetAs is Get for callers that want the payload as a value.
func GetAs[T any](ctx context.Context, m *Manager, key string) (T, Lookup) {
	var v T
	result := m.Get(ctx, key, &v)
	if result != LookupHit {
		var zero T
		return zero, result
	}
	return v, result
}

// Fetch is a read-through lookup. A fresh record is decoded into dst;
// otherwise load is called, its result cached for expiry and decoded into
// dst. Loader errors are returned as is. Cache failures are not errors.
func (m *Manager) Fetch(ctx context.Context, key string, expiry time.Duration, dst any, load func(context.Context) (any, error)) error {
	if m.Get(ctx, key, dst) == LookupHit {
		return nil
	}

	v, err := load(ctx)
	if err != nil {
		return err
	}
	m.Set(ctx, key, v, expiry)

	if dst == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode loaded value for %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode loaded value for %s: %w", key, err)
	}
	return nil
}

// Remove deletes the record for key. Removing a missing key is not an error.
func (m *Manager) Remove(ctx context.Context, key string) Outcome {
	if err := m.store.Remove(ctx, m.storeKey(key)); err != nil {
		logger.WarnCtx(ctx, "Cache remove failed", logger.KeyKey, key, logger.KeyError, err)
		return OutcomeDegraded
	}
	return OutcomeOK
}

// Clear deletes every cache record and returns how many were removed.
// Keys outside the cache prefix are left alone.
func (m *Manager) Clear(ctx context.Context) (int, Outcome) {
	keys, outcome := m.Keys(ctx)
	if outcome != OutcomeOK {
		return 0, outcome
	}

	removed := 0
	for _, key := range keys {
		if m.Remove(ctx, key) != OutcomeOK {
			outcome = OutcomeDegraded
			continue
		}
		removed++
	}
	logger.InfoCtx(ctx, "Cache cleared", logger.KeyCount, removed)
	return removed, outcome
}

// Keys lists logical keys, prefix stripped and sorted. Expired records are
// included; listing never evicts.
func (m *Manager) Keys(ctx context.Context) ([]string, Outcome) {
	all, err := m.store.ListKeys(ctx)
	if err != nil {
		logger.WarnCtx(ctx, "Cache key listing failed", logger.KeyError, err)
		return nil, OutcomeDegraded
	}

	keys := make([]string, 0, len(all))
	for _, k := range all {
		if strings.HasPrefix(k, m.prefix) {
			keys = append(keys, strings.TrimPrefix(k, m.prefix))
		}
	}
	sort.Strings(keys)
	return keys, OutcomeOK
}

// Metadata returns timing details for key without touching the record.
// ok is false when the record is absent, malformed or unreadable.
func (m *Manager) Metadata(ctx context.Context, key string) (Metadata, bool) {
	e, result := m.read(ctx, key)
	if result != LookupHit {
		return Metadata{}, false
	}

	now := m.now()
	created, expires := e.createdAt(), e.expiresAt()
	return Metadata{
		Key:       key,
		CreatedAt: created,
		ExpiresAt: expires,
		Age:       now.Sub(created),
		TTL:       expires.Sub(now),
		Expired:   e.expiredAt(now),
		Size:      len(e.Data),
	}, true
}

// Prune deletes every expired record and returns how many were removed.
func (m *Manager) Prune(ctx context.Context) (int, Outcome) {
	keys, outcome := m.Keys(ctx)
	if outcome != OutcomeOK {
		return 0, outcome
	}

	now := m.now()
	pruned := 0
	for _, key := range keys {
		e, result := m.read(ctx, key)
		switch {
		case result == LookupDegraded:
			outcome = OutcomeDegraded
			continue
		case result != LookupHit || !e.expiredAt(now):
			continue
		}
		if m.Remove(ctx, key) != OutcomeOK {
			outcome = OutcomeDegraded
			continue
		}
		pruned++
	}

	if pruned > 0 && m.metrics != nil {
		m.metrics.RecordEvictions(pruned)
	}
	logger.InfoCtx(ctx, "Cache pruned", logger.KeyEvicted, pruned)
	return pruned, outcome
}
