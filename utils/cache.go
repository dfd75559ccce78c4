package utils

import (
	"context"
	"sync"
	"time"

	"beacon/config"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

var (
	// CacheClient backs the preference cache. It is optional: when redis is down the
	// resolver reads through to mongo.
	CacheClient *redis.Client
	cacheOnce   sync.Once
)

// InitCache connects the preference cache client. A failed ping is logged, not fatal.
func InitCache() {
	CacheClient = redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisCacheDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := CacheClient.Ping(ctx).Err(); err != nil {
		GetLogger().Warn("Preference cache unreachable, reads will go to the store",
			zap.String("addr", config.AppConfig.RedisAddr), zap.Error(err))
	}
}

// GetCacheClient returns the preference cache client, connecting on first use.
func GetCacheClient() *redis.Client {
	cacheOnce.Do(func() {
		if CacheClient == nil {
			InitCache()
		}
	})
	return CacheClient
}

// QueueRedisOpt returns the connection settings for the asynq broker database.
func QueueRedisOpt() *redis.Options {
	return &redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	}
}

// NewQueueRedisClient opens a plain client on the broker database for health checks.
func NewQueueRedisClient() *redis.Client {
	return redis.NewClient(QueueRedisOpt())
}
