package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"claimdesk/internal/contract/models"
	id "claimdesk/pkg/domain"
)

// RedisCache is a read-through cache in front of a Provider. Contract
// references change rarely, so a TTL-bounded cache keeps the contract
// subsystem off the hot path of receipt creation.
type RedisCache struct {
	client *redis.Client
	next   Provider
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, next Provider, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, next: next, ttl: ttl}
}

func (c *RedisCache) FindByID(ctx context.Context, contractID id.ContractID) (*models.Contract, error) {
	key := cacheKey(contractID)

	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var contract models.Contract
		if unmarshalErr := json.Unmarshal(raw, &contract); unmarshalErr == nil {
			return &contract, nil
		}
		// Corrupt entry: fall through to the source and rewrite.
	} else if !errors.Is(err, redis.Nil) {
		// Redis being down must not block claim processing.
		return c.next.FindByID(ctx, contractID)
	}

	contract, err := c.next.FindByID(ctx, contractID)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(contract)
	if err != nil {
		return nil, fmt.Errorf("marshal contract for cache: %w", err)
	}
	// Best effort: a failed SET only costs the next read a source round trip.
	_ = c.client.Set(ctx, key, payload, c.ttl).Err()

	return contract, nil
}

// Invalidate drops a cached entry, for when the contract subsystem signals a
// correction.
func (c *RedisCache) Invalidate(ctx context.Context, contractID id.ContractID) error {
	if err := c.client.Del(ctx, cacheKey(contractID)).Err(); err != nil {
		return fmt.Errorf("invalidate contract cache: %w", err)
	}
	return nil
}

func cacheKey(contractID id.ContractID) string {
	return "contract:" + contractID.String()
}

var _ Provider = (*RedisCache)(nil)
