package tasks

import (
	"context"
	"time"

	"github.com/oshokin/fwmeta/internal/logger"
)

// Scheduler enqueues AllRemotes every Interval.
type Scheduler struct {
	Queue    *Queue
	Interval time.Duration
}

// Run ticks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ctx = logger.WithName(ctx, "fwmeta-scheduler")

	logger.InfoKV(ctx, "Scheduling full rebuilds", "interval", s.Interval.String())

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.Queue.Enqueue(AllRemotes) {
				logger.Debug(ctx, "Full rebuild already pending")
			}
		}
	}
}
