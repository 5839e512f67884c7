package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/clearlane/forwardcore/pkg/canonicalize"
	"github.com/clearlane/forwardcore/pkg/contracts"
)

// RedisStore serves spot prices from Redis. Each (instrument, as-of) pair is
// one key, so a price update is a single atomic SET and lookups can never
// observe a half-written value.
type RedisStore struct {
	client *redis.Client
	// get is the lookup function; split out so the interface contract can be
	// tested without a live server.
	get func(ctx context.Context, key string) (string, error)
}

// NewRedisStore connects to Redis at addr.
func NewRedisStore(addr, password string, db int) *RedisStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisStoreFromClient(rdb)
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		get: func(ctx context.Context, key string) (string, error) {
			return client.Get(ctx, key).Result()
		},
	}
}

func redisSpotKey(instrument string, asOf time.Time) string {
	return fmt.Sprintf("spot:%s:%d", canonicalize.NFC(instrument), asOf.UTC().UnixNano())
}

// Put records a price. Intended for the external feed updater, not the core.
func (s *RedisStore) Put(ctx context.Context, price contracts.SpotPrice) error {
	return s.client.Set(ctx, redisSpotKey(price.Instrument, price.AsOf), price.Value.String(), 0).Err()
}

// Lookup returns the stored price or ErrUnknownSpot.
func (s *RedisStore) Lookup(ctx context.Context, instrument string, asOf time.Time) (contracts.SpotPrice, error) {
	raw, err := s.get(ctx, redisSpotKey(instrument, asOf))
	if errors.Is(err, redis.Nil) {
		return contracts.SpotPrice{}, ErrUnknownSpot
	}
	if err != nil {
		return contracts.SpotPrice{}, fmt.Errorf("oracle: redis lookup failed: %w", err)
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return contracts.SpotPrice{}, fmt.Errorf("oracle: corrupt spot value %q: %w", raw, err)
	}
	return contracts.SpotPrice{
		Instrument: canonicalize.NFC(instrument),
		AsOf:       asOf.UTC(),
		Value:      value,
	}, nil
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
