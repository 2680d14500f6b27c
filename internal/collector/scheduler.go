package collector

import (
	"context"
	"log/slog"
	"time"

	"kvm-dashboard/internal/model"
)

// Scheduler requests a refresh every interval when no interactive view is
// there to do it. The loop performs the initial refresh itself, so the
// first request goes out one interval after Run starts.
type Scheduler struct {
	logger   *slog.Logger
	actions  chan<- model.Action
	interval time.Duration
	dropped  int
}

func NewScheduler(logger *slog.Logger, actions chan<- model.Action, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Scheduler{
		logger:   logger,
		actions:  actions,
		interval: interval,
	}
}

// Run ticks until ctx is done. A tick that finds the action buffer full is
// skipped; a refresh is already pending in that case.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			select {
			case s.actions <- model.RefreshAction():
			default:
				s.dropped++
				s.logger.Debug("action buffer full, skipping scheduled refresh", "skipped_total", s.dropped)
			}
		}
	}
}

// Skipped reports how many ticks found the buffer full. Only meaningful
// after Run has returned.
func (s *Scheduler) Skipped() int {
	return s.dropped
}
