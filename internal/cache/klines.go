// Package cache provides a Redis-backed kline cache with graceful
// degradation: when Redis is unreachable the scan loop just fetches from the
// exchange every cycle.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"smc-trading-bot/internal/market"
)

const klineKeyFormat = "klines:%s:%s" // symbol, interval

// KlineCache stores recently fetched candle batches. A failure streak trips
// the cache unhealthy so hot-path calls stop paying the Redis timeout; a
// later successful ping restores it.
type KlineCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger

	mu           sync.RWMutex
	healthy      bool
	failureCount int
	lastCheck    time.Time

	maxFailures   int
	checkInterval time.Duration
}

// Config holds Redis connection settings for the kline cache.
type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// NewKlineCache connects to Redis. A failed initial ping returns the cache in
// degraded mode rather than an error.
func NewKlineCache(cfg Config, logger zerolog.Logger) *KlineCache {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	kc := &KlineCache{
		client:        client,
		ttl:           cfg.TTL,
		logger:        logger.With().Str("component", "kline_cache").Logger(),
		maxFailures:   3,
		checkInterval: 30 * time.Second,
	}
	if kc.ttl <= 0 {
		kc.ttl = time.Minute
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		kc.logger.Warn().Err(err).Msg("Redis unavailable, kline cache degraded")
		return kc
	}

	kc.healthy = true
	kc.lastCheck = time.Now()
	kc.logger.Info().Str("addr", cfg.Addr).Msg("Redis connected")
	return kc
}

// IsHealthy reports whether Redis is currently usable.
func (kc *KlineCache) IsHealthy() bool {
	kc.mu.RLock()
	defer kc.mu.RUnlock()
	return kc.healthy
}

// Get returns the cached candles for symbol and interval, or false on miss or
// degraded cache.
func (kc *KlineCache) Get(ctx context.Context, symbol, interval string) ([]market.Candle, bool) {
	if !kc.checkHealth(ctx) {
		return nil, false
	}

	data, err := kc.client.Get(ctx, fmt.Sprintf(klineKeyFormat, symbol, interval)).Bytes()
	if err != nil {
		if err != redis.Nil {
			kc.recordFailure(err)
		}
		return nil, false
	}
	kc.recordSuccess()

	var candles []market.Candle
	if err := json.Unmarshal(data, &candles); err != nil {
		kc.logger.Warn().Err(err).Str("symbol", symbol).Msg("Corrupt kline cache entry, dropping")
		kc.client.Del(ctx, fmt.Sprintf(klineKeyFormat, symbol, interval))
		return nil, false
	}
	return candles, true
}

// Put stores a candle batch. Failures are absorbed; the cache is best effort.
func (kc *KlineCache) Put(ctx context.Context, symbol, interval string, candles []market.Candle) {
	if !kc.checkHealth(ctx) {
		return
	}

	data, err := json.Marshal(candles)
	if err != nil {
		return
	}
	if err := kc.client.Set(ctx, fmt.Sprintf(klineKeyFormat, symbol, interval), data, kc.ttl).Err(); err != nil {
		kc.recordFailure(err)
		return
	}
	kc.recordSuccess()
}

// Close releases the Redis client.
func (kc *KlineCache) Close() error {
	return kc.client.Close()
}

// checkHealth returns current health, re-probing Redis at most once per
// check interval while degraded.
func (kc *KlineCache) checkHealth(ctx context.Context) bool {
	kc.mu.RLock()
	healthy, lastCheck := kc.healthy, kc.lastCheck
	kc.mu.RUnlock()

	if healthy {
		return true
	}
	if time.Since(lastCheck) < kc.checkInterval {
		return false
	}

	kc.mu.Lock()
	defer kc.mu.Unlock()
	if time.Since(kc.lastCheck) < kc.checkInterval {
		return kc.healthy
	}
	kc.lastCheck = time.Now()

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := kc.client.Ping(pingCtx).Err(); err != nil {
		return false
	}

	kc.healthy = true
	kc.failureCount = 0
	kc.logger.Info().Msg("Redis recovered, kline cache re-enabled")
	return true
}

func (kc *KlineCache) recordFailure(err error) {
	kc.mu.Lock()
	defer kc.mu.Unlock()

	kc.failureCount++
	if kc.failureCount >= kc.maxFailures && kc.healthy {
		kc.healthy = false
		kc.lastCheck = time.Now()
		kc.logger.Warn().Err(err).Int("failures", kc.failureCount).
			Msg("Redis failure streak, kline cache degraded")
	}
}

func (kc *KlineCache) recordSuccess() {
	kc.mu.Lock()
	defer kc.mu.Unlock()
	kc.failureCount = 0
}
