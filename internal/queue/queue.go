package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/theduckymomoo/HomeIQ---Smart-Energy-Security-Manager---96-Bulls-sub001/internal/core"
	"github.com/theduckymomoo/HomeIQ---Smart-Energy-Security-Manager---96-Bulls-sub001/internal/kvstore"
	"github.com/theduckymomoo/HomeIQ---Smart-Energy-Security-Manager---96-Bulls-sub001/internal/logger"
)

// Queue is a bounded, durable FIFO of pending actions.
type Queue struct {
	mu         sync.Mutex // guards every load-mutate-save span
	store      kvstore.Store
	key        string
	maxSize    int
	maxRetries int
	now        core.Clock
	metrics    Metrics
}

// New creates a queue over cfg.Store. If cfg.Store is nil, an in-memory
// store is used.
func New(cfg Config) *Queue {
	if cfg.Store == nil {
		cfg.Store = kvstore.NewMemoryStore()
	}
	if cfg.Key == "" {
		cfg.Key = core.QueueKey
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = core.MaxQueueSize
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = core.MaxRetries
	}
	return &Queue{
		store:      cfg.Store,
		key:        cfg.Key,
		maxSize:    cfg.MaxSize,
		maxRetries: cfg.MaxRetries,
		now:        cfg.Clock.OrSystem(),
		metrics:    cfg.Metrics,
	}
}

// MaxRetries returns the retry ceiling.
func (q *Queue) MaxRetries() int { return q.maxRetries }

// MaxSize returns the capacity.
func (q *Queue) MaxSize() int { return q.maxSize }

// Add appends a pending item for action, evicting the oldest items while the
// queue is full.
func (q *Queue) Add(ctx context.Context, action Action) (Item, error) {
	if !action.Type.Valid() {
		return Item{}, fmt.Errorf("%w: unknown type %q", ErrInvalidAction, action.Type)
	}
	if action.Data == nil {
		return Item{}, fmt.Errorf("%w: %s has no data", ErrInvalidAction, action.Type)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.load(ctx)
	if err != nil {
		return Item{}, err
	}

	evicted := 0
	for len(items) >= q.maxSize {
		logger.WarnCtx(ctx, "Queue full, evicting oldest item",
			logger.KeyItemID, items[0].ID,
			logger.KeyAction, items[0].Type,
			logger.KeyCapacity, q.maxSize)
		items = items[1:]
		evicted++
	}

	now := q.now()
	item := Item{
		ID:        newID(core.UnixMillis(now)),
		Type:      action.Type,
		Data:      action.Data,
		Timestamp: core.FormatTimestamp(now),
		Status:    StatusPending,
	}
	items = append(items, item)

	if err := q.save(ctx, items); err != nil {
		return Item{}, err
	}

	if q.metrics != nil {
		q.metrics.RecordEnqueue(string(item.Type))
		if evicted > 0 {
			q.metrics.RecordEvictions(evicted)
		}
	}
	logger.InfoCtx(ctx, "Action queued",
		logger.KeyItemID, item.ID,
		logger.KeyAction, item.Type,
		logger.KeyQueueLen, len(items))
	return item, nil
}

// newID combines the enqueue time with a random suffix so ids stay unique
// when several actions are queued within one millisecond.
func newID(unixMillis int64) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%d-%s", unixMillis, suffix)
}

// Items returns all items, oldest first. A missing or corrupt record reads
// as an empty queue.
func (q *Queue) Items(ctx context.Context) ([]Item, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.load(ctx)
}

// Len returns the number of queued items.
func (q *Queue) Len(ctx context.Context) (int, error) {
	items, err := q.Items(ctx)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// Remove deletes the item with id. Removing an unknown id is not an error.
func (q *Queue) Remove(ctx context.Context, id string) error {
	return q.Mutate(ctx, func(items []Item) ([]Item, error) {
		kept := items[:0]
		for _, it := range items {
			if it.ID != id {
				kept = append(kept, it)
			}
		}
		return kept, nil
	})
}

// Clear deletes the persisted queue.
func (q *Queue) Clear(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.store.Remove(ctx, q.key); err != nil {
		return fmt.Errorf("%w: clear %s: %w", ErrStorage, q.key, err)
	}
	if q.metrics != nil {
		q.metrics.SetDepth(0)
	}
	logger.InfoCtx(ctx, "Queue cleared")
	return nil
}

// Mutate runs fn on the current items and persists what it returns, holding
// the queue lock throughout. If fn returns an error nothing is written.
func (q *Queue) Mutate(ctx context.Context, fn func([]Item) ([]Item, error)) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.load(ctx)
	if err != nil {
		return err
	}
	next, err := fn(items)
	if err != nil {
		return err
	}
	return q.save(ctx, next)
}

// Stats counts items by status.
func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	items, err := q.Items(ctx)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{Total: len(items)}
	for _, it := range items {
		switch it.Status {
		case StatusFailed:
			stats.Failed++
		default:
			stats.Pending++
		}
	}
	if len(items) > 0 {
		stats.Oldest = items[0].Timestamp
	}
	return stats, nil
}

// Preview returns the items without their payloads.
func (q *Queue) Preview(ctx context.Context) ([]PreviewItem, error) {
	items, err := q.Items(ctx)
	if err != nil {
		return nil, err
	}

	preview := make([]PreviewItem, len(items))
	for i, it := range items {
		preview[i] = PreviewItem{
			ID:         it.ID,
			Type:       it.Type,
			Timestamp:  it.Timestamp,
			RetryCount: it.RetryCount,
			Status:     it.Status,
		}
	}
	return preview, nil
}

// load reads the persisted list. Callers hold q.mu.
func (q *Queue) load(ctx context.Context) ([]Item, error) {
	raw, ok, err := q.store.Get(ctx, q.key)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrStorage, q.key, err)
	}
	if !ok || raw == "" {
		return []Item{}, nil
	}

	var items []Item
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		logger.WarnCtx(ctx, "Corrupt queue record, treating as empty",
			logger.KeyKey, q.key, logger.KeyError, err)
		return []Item{}, nil
	}
	if items == nil {
		items = []Item{}
	}
	return items, nil
}

// save replaces the persisted list. Callers hold q.mu.
func (q *Queue) save(ctx context.Context, items []Item) error {
	if items == nil {
		items = []Item{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode queue: %w", err)
	}
	if err := q.store.Set(ctx, q.key, string(raw)); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrStorage, q.key, err)
	}
	if q.metrics != nil {
		q.metrics.SetDepth(len(items))
	}
	return nil
}
