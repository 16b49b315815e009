package syncer

import (
	"context"

	"github.com/theduckymomoo/HomeIQ---Smart-Energy-Security-Manager---96-Bulls-sub001/internal/logger"
)

// Watcher drains the queue whenever connectivity comes back.
type Watcher struct {
	Coordinator *Coordinator
	UserID      string

	// OnDrain, if set, receives the outcome of every drain.
	OnDrain func(Result, error)
}

// Run consumes the connectivity signal until ctx is done or the channel is
// closed. The initial state is offline, so a first true value triggers a
// drain. Drains run on the calling goroutine, so they never overlap; signals
// sent meanwhile are handled once the drain returns.
func (w *Watcher) Run(ctx context.Context, online <-chan bool) error {
	current := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case next, ok := <-online:
			if !ok {
				return nil
			}
			was := current
			current = next
			if next == was {
				continue
			}

			logger.Info("Connectivity changed", logger.KeyOnline, next)
			if !next {
				continue
			}

			result, err := w.Coordinator.ProcessQueue(ctx, w.UserID)
			if err != nil {
				logger.Warn("Sync after reconnect failed", logger.KeyError, err)
			}
			if w.OnDrain != nil {
				w.OnDrain(result, err)
			}
		}
	}
}
