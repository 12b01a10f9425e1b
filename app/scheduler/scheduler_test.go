package scheduler

import (
	"bytes"
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type purgerStub struct {
	calls atomic.Int32
	n     int64
	err   error
}

func (p *purgerStub) PurgeExpired(context.Context) (int64, error) {
	p.calls.Add(1)
	return p.n, p.err
}

// syncBuffer lets the test read the log while the job writes to it
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSessionCleanup(t *testing.T) {
	t.Run("purges on start and on every tick", func(t *testing.T) {
		purger := &purgerStub{n: 2}
		var out syncBuffer
		job := NewSessionCleanup(purger, 10*time.Millisecond, log.New(&out, "", 0))

		stop := job.Start(context.Background())
		require.Eventually(t, func() bool { return purger.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
		stop()

		calls := purger.calls.Load()
		assert.Equal(t, int64(calls)*2, job.Purged())
		assert.Contains(t, out.String(), "removed 2 expired sessions")

		time.Sleep(30 * time.Millisecond)
		assert.Equal(t, calls, purger.calls.Load(), "no runs after stop")
	})

	t.Run("failures are logged and the loop continues", func(t *testing.T) {
		purger := &purgerStub{err: errors.New("connection reset")}
		var out syncBuffer
		job := NewSessionCleanup(purger, 10*time.Millisecond, log.New(&out, "", 0))

		stop := job.Start(context.Background())
		require.Eventually(t, func() bool { return purger.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
		stop()

		assert.Zero(t, job.Purged())
		assert.Contains(t, out.String(), "session cleanup failed: connection reset")
	})

	t.Run("default interval", func(t *testing.T) {
		job := NewSessionCleanup(&purgerStub{}, 0, nil)
		assert.Equal(t, time.Hour, job.interval)
	})
}

func TestCacheHealthMonitor(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	var out syncBuffer
	monitor := NewCacheHealthMonitor(client, 10*time.Millisecond, log.New(&out, "", 0))

	stop := monitor.Start(context.Background())
	defer stop()
	assert.True(t, monitor.Healthy())

	mr.SetError("server is down")
	require.Eventually(t, func() bool { return !monitor.Healthy() }, time.Second, 5*time.Millisecond)
	assert.Contains(t, out.String(), "Redis healthcheck failed")

	mr.SetError("")
	require.Eventually(t, monitor.Healthy, time.Second, 5*time.Millisecond)
	assert.NoError(t, monitor.Check(context.Background()))
}
