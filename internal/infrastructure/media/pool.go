package media

import (
	"context"
	"fmt"
	"sync"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"
	"streamcast/pkg/retry"

	"go.uber.org/zap"
)

// WorkerPool owns a fixed set of media workers and load-balances routing
// context creation across them round-robin. A dead worker is respawned at
// the same index, so room-to-worker assignments stay valid; rooms pinned to
// the dead incarnation are reconciled elsewhere.
type WorkerPool struct {
	engine ports.MediaEngine
	logger *zap.SugaredLogger

	mu      sync.Mutex
	workers []ports.Worker
	next    int
	closed  bool

	stop      chan struct{}
	onRespawn func(index int, generation uint64)
}

// NewWorkerPool spawns size workers and starts watching them for death.
func NewWorkerPool(ctx context.Context, engine ports.MediaEngine, size int, logger *zap.SugaredLogger) (*WorkerPool, error) {
	if size < 1 {
		return nil, fmt.Errorf("worker pool size must be >= 1, got %d", size)
	}

	p := &WorkerPool{
		engine:  engine,
		logger:  logger,
		workers: make([]ports.Worker, size),
		stop:    make(chan struct{}),
	}

	for i := 0; i < size; i++ {
		w, err := engine.NewWorker(ctx, i)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to spawn worker %d: %w", i, err)
		}
		p.workers[i] = w
		go p.watch(w)
	}

	logger.Infow("media worker pool started", "size", size)
	return p, nil
}

// SetOnRespawn registers a callback invoked after a dead worker has been
// replaced. Used by the reconciler and metrics.
func (p *WorkerPool) SetOnRespawn(fn func(index int, generation uint64)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onRespawn = fn
}

// AcquireNext returns the next worker round-robin. Slots whose respawn is
// still in flight are skipped; if every slot is down the pool is drained.
func (p *WorkerPool) AcquireNext() (ports.Worker, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, domain.ErrWorkerPoolDrained
	}

	for i := 0; i < len(p.workers); i++ {
		w := p.workers[p.next]
		p.next = (p.next + 1) % len(p.workers)
		if w != nil {
			return w, nil
		}
	}
	return nil, domain.ErrWorkerPoolDrained
}

// Size reports the fixed pool size.
func (p *WorkerPool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// Worker returns the current worker at index, or nil while it respawns.
func (p *WorkerPool) Worker(index int) ports.Worker {
	p.mu.Lock()
	defer p.mu.Unlock()
	if index < 0 || index >= len(p.workers) {
		return nil
	}
	return p.workers[index]
}

func (p *WorkerPool) watch(w ports.Worker) {
	select {
	case err := <-w.Died():
		p.handleDeath(w, err)
	case <-p.stop:
	}
}

func (p *WorkerPool) handleDeath(dead ports.Worker, cause error) {
	index := dead.Index()
	p.logger.Errorw("media worker died", "index", index, "generation", dead.Generation(), "error", cause)

	p.mu.Lock()
	if p.closed || p.workers[index] != dead {
		p.mu.Unlock()
		return
	}
	p.workers[index] = nil
	p.mu.Unlock()

	dead.Close()

	// The replacement reuses the index, and with it the same port range.
	var replacement ports.Worker
	err := retry.Do(context.Background(), retry.DefaultConfig(), func() error {
		w, err := p.engine.NewWorker(context.Background(), index)
		if err != nil {
			return err
		}
		replacement = w
		return nil
	})
	if err != nil {
		p.logger.Errorw("failed to respawn media worker, slot left vacant", "index", index, "error", err)
		return
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		replacement.Close()
		return
	}
	p.workers[index] = replacement
	onRespawn := p.onRespawn
	p.mu.Unlock()

	go p.watch(replacement)
	p.logger.Infow("media worker respawned", "index", index, "generation", replacement.Generation())

	if onRespawn != nil {
		onRespawn(index, replacement.Generation())
	}
}

// Close stops watching and closes every live worker.
func (p *WorkerPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	workers := make([]ports.Worker, len(p.workers))
	copy(workers, p.workers)
	p.mu.Unlock()

	close(p.stop)
	for _, w := range workers {
		if w != nil {
			w.Close()
		}
	}
	return nil
}
