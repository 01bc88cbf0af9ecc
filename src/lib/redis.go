package lib

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

var redisClient *redis.Client

func GetRedisClient() *redis.Client {
	if redisClient != nil {
		return redisClient
	}
	redisHost := os.Getenv("REDIS_HOST")
	opt, err := redis.ParseURL(redisHost)
	if err != nil {
		log.Printf("[redis] Error parsing connection string: %s\n", err.Error())
		return nil
	}
	rdb := redis.NewClient(opt)
	redisClient = rdb
	return rdb
}

// CacheSet is a fire-and-forget write. Cache misses are always tolerated
// downstream so a nil client or a failed write is only logged.
func CacheSet(key, value string, ttl time.Duration) {
	rdb := GetRedisClient()
	if rdb == nil {
		return
	}
	if err := rdb.Set(context.Background(), key, value, ttl).Err(); err != nil {
		log.Printf("[redis] Failed to set value for key %s: %s\n", key, err.Error())
	}
}

func CacheGet(key string) string {
	rdb := GetRedisClient()
	if rdb == nil {
		return ""
	}
	val, err := rdb.Get(context.Background(), key).Result()
	if err == redis.Nil {
		return ""
	} else if err != nil {
		log.Printf("[redis] Error retrieving value for %s: %s\n", key, err.Error())
		return ""
	}
	return val
}

// NewRedisClient Replace redis instance with custom client implementation
func NewRedisClient(c *redis.Client) *redis.Client {
	redisClient = c
	return redisClient
}
