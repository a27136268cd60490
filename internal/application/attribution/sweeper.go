package attribution

import (
	"context"
	"errors"
	"time"
)

// DefaultSweepInterval is used when the sweeper is given no interval
const DefaultSweepInterval = 5 * time.Minute

// Sweeper periodically runs SweepExpired. Its lifetime is the context
// passed to Run; the scheduler owns starting and stopping it.
type Sweeper struct {
	service  *Service
	interval time.Duration
}

// NewSweeper creates a sweeper polling every interval
func NewSweeper(service *Service, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{service: service, interval: interval}
}

// Run sweeps immediately and then every interval until ctx is done. A
// sweep in progress is finished before Run returns.
func (w *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.sweepOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.sweepOnce(ctx)
		}
	}
}

func (w *Sweeper) sweepOnce(ctx context.Context) {
	// the sweep itself must not observe the loop's cancellation
	result, err := w.service.SweepExpired(context.WithoutCancel(ctx), w.service.now())
	switch {
	case errors.Is(err, ErrNoDefaultPayee):
	case err != nil:
		w.service.logger.Error("sweep failed", "error", err)
	case result.Attributed > 0:
		w.service.logger.Debug("sweep finished", "attributed", result.Attributed)
	}
}
