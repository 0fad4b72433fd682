package feedback

import (
	"context"
	"fmt"
	"time"

	"mandate-matching/internal/common/logger"

	"github.com/robfig/cron/v3"
)

// Scheduler runs RecomputeAll on a cron schedule. A run still in progress
// causes the next tick to be skipped.
type Scheduler struct {
	cron       *cron.Cron
	aggregator *Aggregator
	timeout    time.Duration
	logger     logger.Logger
}

func NewScheduler(spec string, aggregator *Aggregator, timeout time.Duration, log logger.Logger) (*Scheduler, error) {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	s := &Scheduler{
		aggregator: aggregator,
		timeout:    timeout,
		logger:     log.WithFields(map[string]interface{}{"component": "recompute_scheduler"}),
	}
	s.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("invalid recompute schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("recompute scheduler started", map[string]interface{}{
		"entries": len(s.cron.Entries()),
	})
}

// Stop halts scheduling and waits for a running recompute, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("recompute still running at shutdown", nil)
	}
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	summary, err := s.aggregator.RecomputeAll(ctx)
	if err != nil {
		s.logger.Error("scheduled recompute failed", map[string]interface{}{"error": err.Error()})
		return
	}
	s.logger.Info("scheduled recompute done", map[string]interface{}{
		"updated":   summary.Updated,
		"unchanged": summary.Unchanged,
		"skipped":   len(summary.Skipped),
		"failed":    len(summary.Failed),
	})
}
