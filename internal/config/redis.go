package config

// Redis backs the login rate limiter.  If the server cannot be reached at
// startup NewRedisClient returns nil and the limiter degrades to a no-op, so
// an outage of the cache never blocks authentication.

import (
	"context"
	"crypto/tls"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions builds client options from the environment:
//
//	REDIS_ADDR            host:port (default localhost:6379)
//	REDIS_HOST/REDIS_PORT override REDIS_ADDR when both are set
//	REDIS_PASSWORD        optional password
//	REDIS_DB              database number (default 0)
//	REDIS_TLS             enable TLS when truthy
func RedisOptions() *redis.Options {
	addr := envStr("REDIS_ADDR", "localhost:6379")
	if host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT"); host != "" && port != "" {
		addr = host + ":" + port
	}
	opts := &redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       envInt("REDIS_DB", 0),
	}
	if envBool("REDIS_TLS", false) {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts
}

// NewRedisClient connects with RedisOptions and pings the server with a
// short timeout.  It returns nil when the server is unreachable.
func NewRedisClient(ctx context.Context) *redis.Client {
	client := redis.NewClient(RedisOptions())
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}
