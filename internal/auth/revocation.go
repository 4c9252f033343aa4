package auth

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevokedPrefix is the Redis key prefix for logged-out tokens.
const RevokedPrefix = "session:revoked:"

// Revoke blocks token until it would have expired anyway.
func Revoke(ctx context.Context, rdb *redis.Client, token string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return rdb.Set(ctx, RevokedPrefix+Fingerprint(token), "1", ttl).Err()
}

// IsRevoked reports whether token was logged out. A nil client never revokes.
func IsRevoked(ctx context.Context, rdb *redis.Client, token string) (bool, error) {
	if rdb == nil {
		return false, nil
	}
	err := rdb.Get(ctx, RevokedPrefix+Fingerprint(token)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
