package repositories

import (
	"context"
	"time"

	"streamcast/internal/core/ports"
	"streamcast/internal/infrastructure/repositories/memory"
	"streamcast/internal/infrastructure/repositories/postgres"
	redisrepo "streamcast/internal/infrastructure/repositories/redis"
	"streamcast/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RepositoryFactory wires the collaborators with graceful fallback: Redis
// presence falls back to memory, Postgres persistence falls back to memory.
// A collaborator being down degrades durability, never availability.
type RepositoryFactory struct {
	cfg         *config.Config
	redisClient *redis.Client
	pgRepo      *postgres.PostgresStreamRepository
	cached      *CachedStreamRepository
	logger      *zap.SugaredLogger
}

// streamCacheTTL bounds how stale a Postgres-backed stream record can
// look to the HTTP surface.
const streamCacheTTL = 5 * time.Second

func NewRepositoryFactory(cfg *config.Config, logger *zap.SugaredLogger) *RepositoryFactory {
	factory := &RepositoryFactory{cfg: cfg, logger: logger}

	if cfg.Redis.Enabled {
		client, err := redisrepo.NewClient(
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
			logger,
		)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to memory presence",
				"error", err,
			)
		} else {
			factory.redisClient = client
		}
	}

	if cfg.Postgres.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		repo, err := postgres.NewPostgresStreamRepository(ctx, cfg.Postgres.DSN, logger)
		cancel()
		if err != nil {
			logger.Warnw("failed to connect to Postgres, falling back to memory persistence",
				"error", err,
			)
		} else {
			factory.pgRepo = repo
		}
	}

	return factory
}

// RedisClient exposes the shared client for the pub/sub event bus. Nil when
// Redis is disabled or unreachable.
func (f *RepositoryFactory) RedisClient() *redis.Client {
	return f.redisClient
}

func (f *RepositoryFactory) CreateStreamRepository() ports.StreamRepository {
	if f.pgRepo != nil {
		f.logger.Info("using Postgres stream repository with read cache")
		f.cached = NewCachedStreamRepository(f.pgRepo, streamCacheTTL)
		return f.cached
	}
	f.logger.Info("using memory stream repository")
	return memory.NewMemoryStreamRepository()
}

func (f *RepositoryFactory) CreatePresenceRepository() ports.PresenceRepository {
	if f.redisClient != nil {
		f.logger.Info("using Redis presence repository")
		return redisrepo.NewRedisPresenceRepository(f.redisClient, f.cfg.Room.ChatHistorySize)
	}
	f.logger.Info("using memory presence repository")
	return memory.NewMemoryPresenceRepository(f.cfg.Room.ChatHistorySize)
}

// Close closes external connections if used.
func (f *RepositoryFactory) Close() error {
	var err error
	if f.cached != nil {
		f.cached.Stop()
	}
	if f.redisClient != nil {
		err = redisrepo.CloseClient(f.redisClient)
	}
	if f.pgRepo != nil {
		f.pgRepo.Close()
	}
	return err
}

// HealthCheck verifies external collaborator connectivity.
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	if f.redisClient != nil {
		if err := f.redisClient.Ping(ctx).Err(); err != nil {
			return err
		}
	}
	if f.pgRepo != nil {
		return f.pgRepo.Ping(ctx)
	}
	return nil
}
