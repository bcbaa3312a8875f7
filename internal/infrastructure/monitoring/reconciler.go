package monitoring

import (
	"context"
	"time"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"
	"streamcast/internal/core/session"

	"go.uber.org/zap"
)

// WorkerLookup resolves the current worker at a pool index. A nil result
// means the slot is vacant (dead and not yet respawned).
type WorkerLookup interface {
	Worker(index int) ports.Worker
}

// StreamAborter force-ends a stream whose media context is gone.
type StreamAborter interface {
	AbortStream(ctx context.Context, streamID domain.StreamID) error
}

// Reconciler sweeps the room registry and force-ends rooms pinned to a dead
// worker incarnation. A room records the generation of the worker that
// created its routing context; when the slot respawns, the generation no
// longer matches and every routing context on the old incarnation is gone.
type Reconciler struct {
	registry *session.Registry
	pool     WorkerLookup
	aborter  StreamAborter
	interval time.Duration
	logger   *zap.SugaredLogger
}

func NewReconciler(
	registry *session.Registry,
	pool WorkerLookup,
	aborter StreamAborter,
	interval time.Duration,
	logger *zap.SugaredLogger,
) *Reconciler {
	return &Reconciler{
		registry: registry,
		pool:     pool,
		aborter:  aborter,
		interval: interval,
		logger:   logger,
	}
}

// Run sweeps until ctx is canceled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep aborts every orphaned room once. It is safe to call concurrently
// with the periodic loop, e.g. from the pool's respawn hook.
func (r *Reconciler) Sweep(ctx context.Context) {
	for _, room := range r.registry.Snapshot() {
		worker := r.pool.Worker(room.WorkerIndex())
		if worker != nil && worker.Generation() == room.WorkerGeneration() {
			continue
		}

		r.logger.Warnw("room lost its media worker, aborting stream",
			"stream_id", room.StreamID(),
			"worker_index", room.WorkerIndex(),
			"pinned_generation", room.WorkerGeneration(),
		)
		if err := r.aborter.AbortStream(ctx, room.StreamID()); err != nil {
			r.logger.Errorw("failed to abort orphaned stream",
				"stream_id", room.StreamID(),
				"error", err,
			)
		}
	}
}
