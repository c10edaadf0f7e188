package database

import (
	"context"
	"fmt"
	"sync"

	"github.com/neuralforge/platform/pkg/common/config"
	"github.com/neuralforge/platform/pkg/common/logger"
	"github.com/redis/go-redis/v9"
)

var (
	redisClient *redis.Client
	redisOnce   sync.Once
)

// RedisOptions builds the activity feed client options from cfg.
func RedisOptions(cfg *config.Config) *redis.Options {
	return &redis.Options{
		Addr:         fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		PoolSize:     cfg.RedisPoolSize,
		MinIdleConns: cfg.RedisPoolSize / 4,
		DialTimeout:  cfg.RedisDialTimeout,
		ReadTimeout:  cfg.RedisReadTimeout,
		WriteTimeout: cfg.RedisWriteTimeout,
	}
}

// GetRedis returns the shared client. A failed ping is logged, not
// fatal; go-redis reconnects on demand and the feed consumer leaves
// unhandled events uncommitted.
func GetRedis(cfg *config.Config) *redis.Client {
	redisOnce.Do(func() {
		opts := RedisOptions(cfg)
		redisClient = redis.NewClient(opts)

		ctx, cancel := context.WithTimeout(context.Background(), opts.DialTimeout)
		defer cancel()

		log := logger.WithFields(map[string]interface{}{"addr": opts.Addr, "db": opts.DB})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.WithError(err).Error("Failed to connect to Redis")
		} else {
			log.Info("Connected to Redis")
		}
	})

	return redisClient
}

func CloseRedis() error {
	if redisClient != nil {
		return redisClient.Close()
	}
	return nil
}
