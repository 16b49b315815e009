package cache

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/theduckymomoo/HomeIQ---Smart-Energy-Security-Manager---96-Bulls-sub001/internal/logger"
)

// ErrDegraded is reported by Warm for a key whose loaded data could not be
// written to the store.
var ErrDegraded = errors.New("cache write degraded")

// DefaultWarmWorkers bounds concurrent loaders in Warm.
const DefaultWarmWorkers = 4

// Loader fetches fresh data for one cache key.
type Loader func(ctx context.Context) (any, error)

// WarmReport lists the keys Warm refreshed, skipped or failed to load.
type WarmReport struct {
	Loaded  []string
	Fresh   []string
	Failed  map[string]error
	Skipped int // loaders not started because ctx was done
}

// Warm refreshes several keys at once, e.g. after reconnecting. Keys that
// still hold a live entry are left alone unless force is set. At most
// parallel loaders run concurrently. Loader errors are collected per key and
// leave the existing entry untouched.
func (m *Manager) Warm(ctx context.Context, loaders map[string]Loader, expiry time.Duration, parallel int, force bool) WarmReport {
	if parallel <= 0 {
		parallel = DefaultWarmWorkers
	}

	keys := make([]string, 0, len(loaders))
	for k := range loaders {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	report := WarmReport{Failed: make(map[string]error)}
	var mu sync.Mutex
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, parallel)

	for _, key := range keys {
		if !force && m.Get(ctx, key, nil) == LookupHit {
			report.Fresh = append(report.Fresh, key)
			continue
		}

		if ctx.Err() != nil {
			report.Skipped++
			continue
		}
		select {
		case semaphore <- struct{}{}:
		case <-ctx.Done():
			report.Skipped++
			continue
		}

		wg.Add(1)
		go func(key string, load Loader) {
			defer wg.Done()
			defer func() { <-semaphore }()

			data, err := load(ctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed[key] = err
				logger.WarnCtx(ctx, "Cache warm load failed", logger.KeyKey, key, logger.KeyError, err)
				return
			}
			if m.Set(ctx, key, data, expiry) != OutcomeOK {
				report.Failed[key] = ErrDegraded
				return
			}
			report.Loaded = append(report.Loaded, key)
		}(key, loaders[key])
	}

	wg.Wait()
	sort.Strings(report.Loaded)
	logger.DebugCtx(ctx, "Cache warmed",
		logger.KeyCount, len(report.Loaded),
		logger.KeyFailed, len(report.Failed))
	return report
}
