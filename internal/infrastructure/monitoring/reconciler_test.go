package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/session"
	"streamcast/internal/infrastructure/media"
	"streamcast/internal/infrastructure/media/mediatest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingAborter struct {
	aborted []domain.StreamID
}

func (a *recordingAborter) AbortStream(_ context.Context, streamID domain.StreamID) error {
	a.aborted = append(a.aborted, streamID)
	return nil
}

func TestSweepAbortsOrphanedRooms(t *testing.T) {
	engine := mediatest.NewEngine()
	pool, err := media.NewWorkerPool(context.Background(), engine, 1, zap.NewNop().Sugar())
	require.NoError(t, err)
	defer pool.Close()

	registry := session.NewRegistry()
	worker, err := pool.AcquireNext()
	require.NoError(t, err)
	router, err := worker.CreateRoutingContext(context.Background(), domain.DefaultCodecSet())
	require.NoError(t, err)
	_, err = registry.GetOrCreate("str_1", func() (*session.Room, error) {
		return session.NewRoom("str_1", worker, router, 10), nil
	})
	require.NoError(t, err)

	aborter := &recordingAborter{}
	rec := NewReconciler(registry, pool, aborter, time.Minute, zap.NewNop().Sugar())

	// Healthy worker: nothing to do.
	rec.Sweep(context.Background())
	assert.Empty(t, aborter.aborted)

	// Kill the worker and wait for the respawn to bump the generation.
	engine.WorkerAt(0).Kill(errors.New("segfault"))
	require.Eventually(t, func() bool {
		w := pool.Worker(0)
		return w != nil && w.Generation() > worker.Generation()
	}, time.Second, 5*time.Millisecond)

	rec.Sweep(context.Background())
	assert.Equal(t, []domain.StreamID{"str_1"}, aborter.aborted)
}
