package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"
)

const defaultProvisioningPrefix = "provisioning:pending"

// ProvisioningClaimRepository records provisioning keys that are queued but not yet processed.
type ProvisioningClaimRepository struct {
	client *red.Client
	prefix string
}

// NewProvisioningClaimRepository wires a Redis client into a claim repository.
func NewProvisioningClaimRepository(client *red.Client, keyPrefix string) *ProvisioningClaimRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultProvisioningPrefix
	}

	return &ProvisioningClaimRepository{client: client, prefix: prefix}
}

// Claim atomically reserves key for ttl. It returns false when the key is already held.
func (r *ProvisioningClaimRepository) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, errors.New("ttl must be positive")
	}

	redisKey := r.key(key)
	if redisKey == "" {
		return false, errors.New("provisioning key must not be empty")
	}

	ok, err := r.client.SetNX(ctx, redisKey, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx provisioning claim: %w", err)
	}

	return ok, nil
}

// Release drops the reservation for key. Releasing an absent key is not an error.
func (r *ProvisioningClaimRepository) Release(ctx context.Context, key string) error {
	redisKey := r.key(key)
	if redisKey == "" {
		return errors.New("provisioning key must not be empty")
	}

	if err := r.client.Del(ctx, redisKey).Err(); err != nil && !errors.Is(err, red.Nil) {
		return fmt.Errorf("redis del provisioning claim: %w", err)
	}

	return nil
}

func (r *ProvisioningClaimRepository) key(key string) string {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", r.prefix, trimmed)
}
