// Package scheduler runs periodic background jobs next to the HTTP server
package scheduler

import (
	"context"
	"log"
	"sync/atomic"
	"time"
)

// SessionPurger deletes sessions whose expiry has passed
type SessionPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// SessionCleanup removes expired session rows on a fixed interval. Expired sessions are already
// rejected on use; this keeps rows of clients that never come back from piling up.
type SessionCleanup struct {
	purger   SessionPurger
	interval time.Duration
	timeout  time.Duration
	logger   *log.Logger

	purged atomic.Int64
}

// NewSessionCleanup creates a cleanup job. A nil logger uses the standard logger.
func NewSessionCleanup(purger SessionPurger, interval time.Duration, logger *log.Logger) *SessionCleanup {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = log.Default()
	}
	return &SessionCleanup{
		purger:   purger,
		interval: interval,
		timeout:  time.Minute,
		logger:   logger,
	}
}

// Start launches the cleanup loop in a background goroutine and returns a stop function
func (s *SessionCleanup) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	go func() {
		defer close(done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// Purged returns how many sessions the job removed since it started
func (s *SessionCleanup) Purged() int64 {
	return s.purged.Load()
}

func (s *SessionCleanup) runOnce(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	n, err := s.purger.PurgeExpired(ctx)
	if err != nil {
		if parent.Err() == nil {
			s.logger.Printf("session cleanup failed: %v", err)
		}
		return
	}
	if n > 0 {
		s.purged.Add(n)
		s.logger.Printf("session cleanup removed %d expired sessions", n)
	}
}
