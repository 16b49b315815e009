package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/theduckymomoo/HomeIQ---Smart-Energy-Security-Manager---96-Bulls-sub001/internal/backend"
	"github.com/theduckymomoo/HomeIQ---Smart-Energy-Security-Manager---96-Bulls-sub001/internal/cache"
	"github.com/theduckymomoo/HomeIQ---Smart-Energy-Security-Manager---96-Bulls-sub001/internal/config"
	"github.com/theduckymomoo/HomeIQ---Smart-Energy-Security-Manager---96-Bulls-sub001/internal/kvstore"
	"github.com/theduckymomoo/HomeIQ---Smart-Energy-Security-Manager---96-Bulls-sub001/internal/logger"
	"github.com/theduckymomoo/HomeIQ---Smart-Energy-Security-Manager---96-Bulls-sub001/internal/metrics"
	"github.com/theduckymomoo/HomeIQ---Smart-Energy-Security-Manager---96-Bulls-sub001/internal/queue"
	"github.com/theduckymomoo/HomeIQ---Smart-Energy-Security-Manager---96-Bulls-sub001/internal/syncer"
)

// app is the set of components one command runs against.
type app struct {
	store   kvstore.Store
	cache   *cache.Manager
	queue   *queue.Queue
	backend backend.Backend
	sync    *syncer.Coordinator

	closers []func() error
}

// openApp opens the store shared by cache and queue. The backend is only
// opened when withBackend is set, so inspection commands work offline.
func openApp(ctx context.Context, cfg *config.Config, withBackend bool) (*app, error) {
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}

	store, err := kvstore.Open(ctx, cfg.Store.KVStore())
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Type, err)
	}
	logger.Debug("Store opened", logger.KeyStoreType, cfg.Store.Type, logger.KeyPath, cfg.Store.Path)

	a := &app{store: store, closers: []func() error{store.Close}}

	cacheCfg := cache.Config{
		Store:         store,
		Prefix:        cfg.Cache.Prefix,
		DefaultExpiry: cfg.Cache.DefaultExpiry,
	}
	if m := metrics.NewCacheMetrics(); m != nil {
		cacheCfg.Metrics = m
	}
	a.cache = cache.NewManager(cacheCfg)

	queueCfg := queue.Config{
		Store:      store,
		Key:        cfg.Queue.Key,
		MaxSize:    cfg.Queue.MaxSize,
		MaxRetries: cfg.Queue.MaxRetries,
	}
	if m := metrics.NewQueueMetrics(); m != nil {
		queueCfg.Metrics = m
	}
	a.queue = queue.New(queueCfg)

	if !withBackend {
		return a, nil
	}

	b, closeBackend, err := openBackend(cfg.Backend, cfg.Store.Type)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.backend = b
	if closeBackend != nil {
		a.closers = append(a.closers, closeBackend)
	}

	syncCfg := syncer.Config{
		Queue:          a.queue,
		Backend:        b,
		MaxRetries:     cfg.Queue.MaxRetries,
		CommitEachItem: cfg.Sync.CommitEachItem,
	}
	if m := metrics.NewSyncMetrics(); m != nil {
		syncCfg.Metrics = m
	}
	a.sync = syncer.New(syncCfg)
	return a, nil
}

// ErrEphemeralBackend is returned when replaying a durable queue into the
// in-memory backend, which would drop the actions after "syncing" them.
var ErrEphemeralBackend = errors.New("in-memory backend cannot replay a durable queue")

// openBackend returns the configured backend and an optional close func.
// The memory backend is only accepted together with the memory store.
func openBackend(cfg config.BackendConfig, storeType string) (backend.Backend, func() error, error) {
	switch cfg.Type {
	case "rest":
		return backend.NewRESTClient(backend.RESTConfig{
			BaseURL:     cfg.URL,
			APIKey:      cfg.APIKey,
			Timeout:     cfg.Timeout,
			MaxAttempts: cfg.MaxAttempts,
		}), nil, nil
	case "sqlite", "postgres":
		open := kvstore.OpenSQLite
		target := cfg.Path
		if cfg.Type == "postgres" {
			open = kvstore.OpenPostgres
			target = cfg.DSN
		}
		db, err := open(target)
		if err != nil {
			return nil, nil, fmt.Errorf("open %s backend: %w", cfg.Type, err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, err
		}
		return backend.NewGormBackend(db), sqlDB.Close, nil
	case "memory":
		if storeType != string(kvstore.TypeMemory) {
			return nil, nil, fmt.Errorf("%w: store.type is %s; configure a backend with 'homeiq init' or set backend.type",
				ErrEphemeralBackend, storeType)
		}
		logger.Warn("Using in-memory backend, replayed actions are discarded")
		return backend.NewMemoryBackend(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported backend type: %s", cfg.Type)
	}
}

// queueStatus backs /healthz.
func (a *app) queueStatus(ctx context.Context) (map[string]any, error) {
	stats, err := a.queue.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"queued":  stats.Total,
		"pending": stats.Pending,
		"failed":  stats.Failed,
	}, nil
}

// Close releases the store and backend in reverse order of opening.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
