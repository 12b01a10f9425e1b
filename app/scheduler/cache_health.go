package scheduler

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheHealthMonitor pings redis periodically and remembers whether the last ping succeeded
type CacheHealthMonitor struct {
	client   *redis.Client
	interval time.Duration
	logger   *log.Logger
	healthy  atomic.Bool
}

func NewCacheHealthMonitor(client *redis.Client, interval time.Duration, logger *log.Logger) *CacheHealthMonitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	return &CacheHealthMonitor{client: client, interval: interval, logger: logger}
}

// Start runs one ping right away, then one per interval, until the returned stop function is called
func (m *CacheHealthMonitor) Start(parent context.Context) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	m.ping(monitorCtx)

	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				m.ping(monitorCtx)
			}
		}
	}()
	return cancel
}

// Healthy reports the outcome of the most recent ping
func (m *CacheHealthMonitor) Healthy() bool {
	return m.healthy.Load()
}

// Check pings redis now. It has the shape of a health endpoint check.
func (m *CacheHealthMonitor) Check(ctx context.Context) error {
	err := m.client.Ping(ctx).Err()
	m.healthy.Store(err == nil)
	return err
}

func (m *CacheHealthMonitor) ping(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, 3*time.Second)
	defer cancel()
	if err := m.Check(ctx); err != nil && parent.Err() == nil {
		m.logger.Printf("Redis healthcheck failed: %v", err)
	}
}
