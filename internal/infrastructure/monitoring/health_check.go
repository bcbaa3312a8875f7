package monitoring

import (
	"context"
	"sync"
	"time"

	"streamcast/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// HealthChecker aggregates liveness checks over the collaborators. The HTTP
// surface exposes CheckAll via /healthz.
type HealthChecker struct {
	mu     sync.RWMutex
	checks []HealthCheck
}

type HealthCheck struct {
	Name    string
	Check   func(ctx context.Context) error
	Timeout time.Duration
}

type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{}
}

func (h *HealthChecker) AddCheck(name string, timeout time.Duration, check func(ctx context.Context) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, HealthCheck{Name: name, Check: check, Timeout: timeout})
}

// AddRedisCheck verifies the presence cache connection.
func (h *HealthChecker) AddRedisCheck(client *redis.Client, timeout time.Duration) {
	h.AddCheck("redis", timeout, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
}

// AddRepositoryCheck verifies the durable stream repository by listing live
// streams.
func (h *HealthChecker) AddRepositoryCheck(repo ports.StreamRepository, timeout time.Duration) {
	h.AddCheck("repository", timeout, func(ctx context.Context) error {
		_, err := repo.ListLive(ctx)
		return err
	})
}

// AddWorkerPoolCheck fails when the pool has no live workers left.
func (h *HealthChecker) AddWorkerPoolCheck(pool ports.WorkerPool, timeout time.Duration) {
	h.AddCheck("worker_pool", timeout, func(ctx context.Context) error {
		_, err := pool.AcquireNext()
		return err
	})
}

func (h *HealthChecker) CheckAll(ctx context.Context) HealthStatus {
	h.mu.RLock()
	checks := append([]HealthCheck(nil), h.checks...)
	h.mu.RUnlock()

	status := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Checks:    make(map[string]string),
	}

	for _, check := range checks {
		checkCtx, cancel := context.WithTimeout(ctx, check.Timeout)
		err := check.Check(checkCtx)
		cancel()

		if err != nil {
			status.Status = "unhealthy"
			status.Checks[check.Name] = err.Error()
		} else {
			status.Checks[check.Name] = "healthy"
		}
	}

	return status
}

// IsReady reports whether the service should accept traffic.
func (h *HealthChecker) IsReady(ctx context.Context) bool {
	return h.CheckAll(ctx).Status == "healthy"
}
