package repositories

import (
	"context"

	"pairlink/internal/core/ports"
	"pairlink/internal/infrastructure/repositories/memory"
	redisrepo "pairlink/internal/infrastructure/repositories/redis"
	"pairlink/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RepositoryFactory creates the room directory backend. Redis is used
// when enabled and reachable, otherwise it falls back to memory so the
// relay always starts.
type RepositoryFactory struct {
	useRedis    bool
	redisClient *redis.Client
	logger      *zap.Logger
}

func NewRepositoryFactory(cfg *config.Config, logger *zap.Logger) (*RepositoryFactory, error) {
	factory := &RepositoryFactory{
		useRedis: cfg.Redis.Enabled,
		logger:   logger,
	}

	if cfg.Redis.Enabled {
		client, err := redisrepo.NewRedisClient(
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
			logger,
		)
		if err != nil {
			logger.Warn("failed to connect to Redis, falling back to memory room directory",
				zap.Error(err))
			factory.useRedis = false
		} else {
			factory.redisClient = client
			logger.Info("using Redis room directory")
		}
	}

	if !factory.useRedis {
		logger.Info("using in-memory room directory")
	}

	return factory, nil
}

func (f *RepositoryFactory) CreateRoomRepository() ports.RoomRepository {
	if f.useRedis && f.redisClient != nil {
		return redisrepo.NewRedisRoomRepository(f.redisClient)
	}
	return memory.NewMemoryRoomRepository()
}

func (f *RepositoryFactory) Close() error {
	if f.redisClient != nil {
		return redisrepo.CloseRedisClient(f.redisClient)
	}
	return nil
}

// HealthCheck verifies the Redis connection when Redis is in use.
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	if f.useRedis && f.redisClient != nil {
		return f.redisClient.Ping(ctx).Err()
	}
	return nil
}
