package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const replayTTL = 24 * time.Hour

// ReplayChecker detects retried product submissions by idempotency key.
// Key format: replay:<idempotency_key> → product id
type ReplayChecker struct {
	client *redis.Client
}

// NewReplayChecker creates a ReplayChecker wrapping the given Redis client.
func NewReplayChecker(client *redis.Client) *ReplayChecker {
	return &ReplayChecker{client: client}
}

// Lookup returns the product id created by an earlier submission with the
// same key, if any.
func (r *ReplayChecker) Lookup(ctx context.Context, key string) (int64, bool, error) {
	raw, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("replay lookup: %w", err)
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("replay lookup: bad value %q: %w", raw, err)
	}
	return id, true, nil
}

// Save records that the key produced the product (expires after replayTTL).
func (r *ReplayChecker) Save(ctx context.Context, key string, productID int64) error {
	return r.client.Set(ctx, r.key(key), strconv.FormatInt(productID, 10), replayTTL).Err()
}

func (r *ReplayChecker) key(idempotencyKey string) string {
	return "replay:" + idempotencyKey
}
