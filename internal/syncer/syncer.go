// Package syncer drains the offline action queue against the backend.
//
// A drain snapshots the queue, replays items oldest first through the
// operations table and then reconciles outcomes back into the queue under
// its lock. The lock is never held across backend calls, so actions queued
// during a drain are kept for the next one.
//
// Replay is not transactional across items. By default outcomes are
// committed once at the end of the drain; with CommitEachItem they are
// committed after every item, trading store writes for crash safety.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/theduckymomoo/HomeIQ---Smart-Energy-Security-Manager---96-Bulls-sub001/internal/backend"
	"github.com/theduckymomoo/HomeIQ---Smart-Energy-Security-Manager---96-Bulls-sub001/internal/core"
	"github.com/theduckymomoo/HomeIQ---Smart-Energy-Security-Manager---96-Bulls-sub001/internal/logger"
	"github.com/theduckymomoo/HomeIQ---Smart-Energy-Security-Manager---96-Bulls-sub001/internal/queue"
)

// ErrUnsupportedAction is the replay failure for an item whose type has no
// entry in the operations table.
var ErrUnsupportedAction = errors.New("unsupported action type")

// Metrics receives sync activity. A nil Metrics disables recording.
type Metrics interface {
	RecordReplay(action string, ok bool)
	RecordDropped(n int)
	ObservePass(d time.Duration)
}

// Config configures a Coordinator.
type Config struct {
	Queue   *queue.Queue
	Backend backend.Backend

	// Operations defaults to DefaultOperations().
	Operations Operations

	// MaxRetries defaults to the queue's retry ceiling.
	MaxRetries int

	// CommitEachItem persists each outcome as soon as it is known instead of
	// once per drain.
	CommitEachItem bool

	Metrics Metrics
}

// ItemError describes an item dropped after its last allowed failure.
type ItemError struct {
	ID         string           `json:"id"`
	Type       queue.ActionType `json:"type"`
	RetryCount int              `json:"retryCount"`
	Error      string           `json:"error"`
}

// Result summarizes one drain.
type Result struct {
	Processed int         `json:"processed"`
	Failed    int         `json:"failed"`
	Total     int         `json:"total"`
	Errors    []ItemError `json:"errors,omitempty"`
}

// Coordinator replays queued actions.
type Coordinator struct {
	queue          *queue.Queue
	backend        backend.Backend
	ops            Operations
	maxRetries     int
	commitEachItem bool
	metrics        Metrics

	drainMu sync.Mutex // drains never overlap
}

// New creates a coordinator.
func New(cfg Config) *Coordinator {
	if cfg.Operations == nil {
		cfg.Operations = DefaultOperations()
	}
	if cfg.MaxRetries <= 0 {
		if cfg.Queue != nil {
			cfg.MaxRetries = cfg.Queue.MaxRetries()
		} else {
			cfg.MaxRetries = core.MaxRetries
		}
	}
	return &Coordinator{
		queue:          cfg.Queue,
		backend:        cfg.Backend,
		ops:            cfg.Operations,
		maxRetries:     cfg.MaxRetries,
		commitEachItem: cfg.CommitEachItem,
		metrics:        cfg.Metrics,
	}
}

// ProcessQueue drains the queue for userID.
//
// The context is checked between items only; an item whose replay has
// started runs to completion. On cancellation the outcomes so far are
// committed, the remaining items are left untouched, and the partial result
// is returned together with the context error.
func (c *Coordinator) ProcessQueue(ctx context.Context, userID string) (Result, error) {
	if userID == "" {
		return Result{}, ErrNoUser
	}

	c.drainMu.Lock()
	defer c.drainMu.Unlock()

	start := time.Now()
	ctx = logger.WithContext(ctx, &logger.LogContext{
		PassID:    uuid.NewString()[:8],
		UserID:    userID,
		Component: "syncer",
		StartTime: start,
	})

	snapshot, err := c.queue.Items(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("snapshot queue: %w", err)
	}
	if len(snapshot) == 0 {
		logger.DebugCtx(ctx, "Queue empty, nothing to sync")
		return Result{}, nil
	}

	logger.InfoCtx(ctx, "Sync started", logger.KeyTotal, len(snapshot))
	result := Result{Total: len(snapshot)}

	// outcomes maps an item id to its replacement; nil means drop.
	outcomes := make(map[string]*queue.Item)
	var stopErr error

	for _, item := range snapshot {
		if err := ctx.Err(); err != nil {
			stopErr = err
			break
		}

		if err := c.replay(ctx, item, userID); err != nil {
			result.Failed++
			item.RetryCount++
			item.Status = queue.StatusFailed
			item.LastError = err.Error()

			if item.RetryCount >= c.maxRetries {
				outcomes[item.ID] = nil
				result.Errors = append(result.Errors, ItemError{
					ID:         item.ID,
					Type:       item.Type,
					RetryCount: item.RetryCount,
					Error:      item.LastError,
				})
				logger.WarnCtx(ctx, "Action dropped after final retry",
					logger.KeyItemID, item.ID,
					logger.KeyAction, item.Type,
					logger.KeyRetryCount, item.RetryCount,
					logger.KeyError, err)
			} else {
				outcomes[item.ID] = &item
				logger.InfoCtx(ctx, "Action replay failed, will retry",
					logger.KeyItemID, item.ID,
					logger.KeyAction, item.Type,
					logger.KeyRetryCount, item.RetryCount,
					logger.KeyError, err)
			}
		} else {
			result.Processed++
			outcomes[item.ID] = nil
			logger.DebugCtx(ctx, "Action replayed", logger.KeyItemID, item.ID, logger.KeyAction, item.Type)
		}

		if c.commitEachItem {
			if err := c.commit(ctx, outcomes); err != nil {
				return result, err
			}
			outcomes = make(map[string]*queue.Item)
		}
	}

	if err := c.commit(ctx, outcomes); err != nil {
		return result, err
	}

	if c.metrics != nil {
		c.metrics.RecordDropped(len(result.Errors))
		c.metrics.ObservePass(time.Since(start))
	}
	logger.InfoCtx(ctx, "Sync finished",
		logger.KeyProcessed, result.Processed,
		logger.KeyFailed, result.Failed,
		logger.KeyTotal, result.Total,
		logger.KeyDropped, len(result.Errors),
		logger.KeyDurationMs, logger.Duration(start))

	return result, stopErr
}

// replay runs the operation for item. Cancellation of ctx does not abort a
// replay in flight.
func (c *Coordinator) replay(ctx context.Context, item queue.Item, userID string) error {
	op, ok := c.ops[item.Type]
	var err error
	if !ok {
		err = fmt.Errorf("%w: %s", ErrUnsupportedAction, item.Type)
	} else {
		err = op(context.WithoutCancel(ctx), c.backend, item, userID)
	}
	if c.metrics != nil {
		c.metrics.RecordReplay(string(item.Type), err == nil)
	}
	return err
}

// commit applies outcomes to the current queue. Items not in outcomes,
// including those queued during the drain, are kept as they are; items
// removed during the drain stay removed.
func (c *Coordinator) commit(ctx context.Context, outcomes map[string]*queue.Item) error {
	if len(outcomes) == 0 {
		return nil
	}
	err := c.queue.Mutate(context.WithoutCancel(ctx), func(items []queue.Item) ([]queue.Item, error) {
		next := make([]queue.Item, 0, len(items))
		for _, it := range items {
			replacement, seen := outcomes[it.ID]
			switch {
			case !seen:
				next = append(next, it)
			case replacement != nil:
				next = append(next, *replacement)
			}
		}
		return next, nil
	})
	if err != nil {
		return fmt.Errorf("commit sync outcomes: %w", err)
	}
	return nil
}

// Submit queues action and, when online, drains immediately. The drain
// result is nil when offline.
func (c *Coordinator) Submit(ctx context.Context, action queue.Action, userID string, online bool) (queue.Item, *Result, error) {
	item, err := c.queue.Add(ctx, action)
	if err != nil {
		return queue.Item{}, nil, err
	}
	if !online {
		return item, nil, nil
	}
	result, err := c.ProcessQueue(ctx, userID)
	return item, &result, err
}
