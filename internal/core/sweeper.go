package core

// sweeper.go expires idle sessions in the background.
//
// Sessions live in memory only. Without a sweeper, every browser that ever
// loaded the page would keep its parsed cohort files forever. The sweeper
// runs on a ticker and stops when its context is cancelled.

import (
	"context"
	"time"
)

// DefaultSweepInterval is how often idle sessions are checked.
const DefaultSweepInterval = 10 * time.Minute

// StartSessionSweeper periodically evicts sessions idle longer than the
// session TTL. It blocks until ctx is cancelled, so run it in a goroutine.
func (s *Service) StartSessionSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	s.logger.Info("session sweeper started",
		"interval", interval.String(),
		"ttl", s.opts.SessionTTL.String(),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("session sweeper stopped")
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep performs one eviction pass.
func (s *Service) sweep() {
	start := time.Now()
	removed := s.EvictIdle()
	if removed == 0 {
		s.logger.Debug("session sweep found nothing to evict")
		return
	}
	s.logger.Info("expired idle sessions",
		"sessions_removed", removed,
		"sessions_remaining", s.SessionCount(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
