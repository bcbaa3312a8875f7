package media

import (
	"context"
	"errors"
	"testing"
	"time"

	"streamcast/internal/core/domain"
	"streamcast/internal/infrastructure/media/mediatest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestPool(t *testing.T, engine *mediatest.Engine, size int) *WorkerPool {
	t.Helper()
	pool, err := NewWorkerPool(context.Background(), engine, size, zap.NewNop().Sugar())
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })
	return pool
}

func TestAcquireNextRoundRobin(t *testing.T) {
	pool := newTestPool(t, mediatest.NewEngine(), 3)

	// Creating four rooms assigns workers in order 0,1,2,0.
	var indexes []int
	for i := 0; i < 4; i++ {
		w, err := pool.AcquireNext()
		require.NoError(t, err)
		indexes = append(indexes, w.Index())
	}
	assert.Equal(t, []int{0, 1, 2, 0}, indexes)
}

func TestWorkerRespawnPreservesIndex(t *testing.T) {
	engine := mediatest.NewEngine()
	pool := newTestPool(t, engine, 2)

	respawned := make(chan uint64, 1)
	pool.SetOnRespawn(func(index int, generation uint64) {
		assert.Equal(t, 1, index)
		respawned <- generation
	})

	engine.WorkerAt(1).Kill(errors.New("segfault"))

	select {
	case gen := <-respawned:
		assert.Equal(t, uint64(2), gen)
	case <-time.After(2 * time.Second):
		t.Fatal("worker was not respawned")
	}

	w := pool.Worker(1)
	require.NotNil(t, w)
	assert.Equal(t, 1, w.Index())
	assert.Equal(t, uint64(2), w.Generation())
}

func TestAcquireSkipsVacantSlot(t *testing.T) {
	engine := mediatest.NewEngine()
	pool := newTestPool(t, engine, 2)

	// Force the next respawn to stall so slot 0 stays vacant.
	engine.NewWorkerErr = errors.New("spawn refused")
	engine.WorkerAt(0).Kill(errors.New("oom"))

	// The dead slot must never be handed out.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if pool.Worker(0) == nil {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	for i := 0; i < 4; i++ {
		w, err := pool.AcquireNext()
		require.NoError(t, err)
		assert.Equal(t, 1, w.Index())
	}
}

func TestPoolDrained(t *testing.T) {
	engine := mediatest.NewEngine()
	pool := newTestPool(t, engine, 1)

	engine.NewWorkerErr = errors.New("spawn refused")
	engine.WorkerAt(0).Kill(errors.New("oom"))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := pool.AcquireNext(); errors.Is(err, domain.ErrWorkerPoolDrained) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected pool to report drained")
}

func TestClosedPoolRejectsAcquire(t *testing.T) {
	pool := newTestPool(t, mediatest.NewEngine(), 1)
	require.NoError(t, pool.Close())

	_, err := pool.AcquireNext()
	assert.ErrorIs(t, err, domain.ErrWorkerPoolDrained)
}
