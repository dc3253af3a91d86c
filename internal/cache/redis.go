// Package cache keeps query embeddings in Redis so repeated questions skip the provider.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"pdf-rag/internal/config"
)

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(cfg config.CacheConfig) *RedisCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewWithClient(rdb, time.Duration(cfg.TTLSecs)*time.Second)
}

func NewWithClient(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// Key is emb:<model>:<sha256 of text>.
func Key(model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("emb:%s:%s", model, hex.EncodeToString(sum[:]))
}

func (c *RedisCache) Get(ctx context.Context, model, text string) ([]float32, bool) {
	val, err := c.client.Get(ctx, Key(model, text)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Msg("Embedding cache read failed")
		}
		return nil, false
	}
	var v []float32
	if err := json.Unmarshal(val, &v); err != nil {
		log.Warn().Err(err).Msg("Embedding cache entry is corrupt")
		return nil, false
	}
	return v, true
}

func (c *RedisCache) Set(ctx context.Context, model, text string, vector []float32) {
	b, err := json.Marshal(vector)
	if err != nil {
		log.Warn().Err(err).Msg("Embedding cache encode failed")
		return
	}
	if err := c.client.Set(ctx, Key(model, text), b, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Msg("Embedding cache write failed")
	}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
