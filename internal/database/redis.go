// Package database opens the shared connections that sit beside the ledger
// store. Today that is only Redis.
package database

import (
	"context"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/supabros/bookstore/internal/config"
)

const pingTimeout = 3 * time.Second

// InitRedis connects to Redis. It returns nil when the server does not
// answer so callers can run without sessions or the token blacklist.
func InitRedis(cfg config.RedisConfig) *redis.Client {
	if cfg.Host == "" {
		log.Println("[REDIS] no host configured, continuing without Redis")
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Host + ":" + cfg.Port,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("[REDIS] connection failed, continuing without Redis: %v", err)
		rdb.Close()
		return nil
	}

	log.Println("[REDIS] connection established")
	return rdb
}
