package purge

import (
	"context"
	"log/slog"
	"time"
)

// Scheduler runs the retention sweep on a periodic interval.
// It is stateless: each tick independently drains whatever has expired.
type Scheduler struct {
	interval  time.Duration
	retention time.Duration
	batchSize int
	engine    *Engine
}

func NewScheduler(interval, retention time.Duration, batchSize int, engine *Engine) *Scheduler {
	if batchSize <= 0 {
		batchSize = defaultMaxRows
	}
	return &Scheduler{
		interval:  interval,
		retention: retention,
		batchSize: batchSize,
		engine:    engine,
	}
}

// Start begins periodic purging. Runs until context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("[PurgeScheduler] Starting retention sweep scheduler",
		"interval", s.interval,
		"retention", s.retention,
		"batch_size", s.batchSize,
	)

	// Initial sweep to catch up with any backlog.
	s.drainExpired(ctx)

	for {
		select {
		case <-ticker.C:
			s.drainExpired(ctx)
		case <-ctx.Done():
			slog.Info("[PurgeScheduler] Stopping (context cancelled)")
			return nil
		}
	}
}

// drainExpired purges expired rows in bounded batches until none remain.
// Each batch is its own unit of work, so concurrent writers are never
// blocked for long.
func (s *Scheduler) drainExpired(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.retention)
	batchCount := 0
	maxConsecutiveBatches := 100 // Safety limit to prevent infinite loop
	var total int64

	for batchCount < maxConsecutiveBatches {
		select {
		case <-ctx.Done():
			slog.Info("[PurgeScheduler] Sweep interrupted by context cancellation",
				"batches_completed", batchCount,
				"rows_deleted", total,
			)
			return
		default:
		}

		deleted, err := s.engine.PurgeExpiredRows(ctx, cutoff, SiteScopeAll, s.batchSize)
		if err != nil {
			slog.Error("[PurgeScheduler] Purge batch failed",
				"error", err,
				"batch_number", batchCount+1,
			)
			return
		}

		batchCount++
		total += deleted

		// A short batch means the expired backlog is drained.
		if deleted < int64(s.batchSize) {
			if total > 0 {
				slog.Info("[PurgeScheduler] Sweep complete",
					"rows_deleted", total,
					"batches", batchCount,
				)
			}
			return
		}
	}

	slog.Warn("[PurgeScheduler] Stopped sweep at batch cap, backlog remains",
		"batches", batchCount,
		"rows_deleted", total,
	)
}
