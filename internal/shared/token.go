package shared

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenManager issues opaque bearer tokens backed by Redis. The token value
// carries no claims itself; the principal payload lives server-side under a
// TTL, so revocation is a single delete.
type TokenManager struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewTokenManager constructs a TokenManager.
func NewTokenManager(client *redis.Client, prefix string, ttl time.Duration) *TokenManager {
	if prefix == "" {
		prefix = "token"
	}
	return &TokenManager{client: client, prefix: prefix, ttl: ttl}
}

// Issue stores the principal and returns a fresh bearer token.
func (tm *TokenManager) Issue(ctx context.Context, p Principal) (string, error) {
	if tm == nil || tm.client == nil {
		return "", errors.New("token manager not initialised")
	}
	token, err := generateToken()
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	if err := tm.client.Set(ctx, tm.redisKey(token), payload, tm.ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// Resolve looks up the principal for a bearer token and slides its expiry.
func (tm *TokenManager) Resolve(ctx context.Context, token string) (*Principal, error) {
	if tm == nil || tm.client == nil {
		return nil, errors.New("token manager not initialised")
	}
	if token == "" {
		return nil, ErrTokenInvalid
	}
	payload, err := tm.client.Get(ctx, tm.redisKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrTokenInvalid
		}
		return nil, err
	}
	var p Principal
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, err
	}
	_ = tm.client.Expire(ctx, tm.redisKey(token), tm.ttl).Err()
	return &p, nil
}

// Revoke deletes a token, typically on logout.
func (tm *TokenManager) Revoke(ctx context.Context, token string) error {
	if tm == nil || tm.client == nil {
		return errors.New("token manager not initialised")
	}
	if token == "" {
		return nil
	}
	return tm.client.Del(ctx, tm.redisKey(token)).Err()
}

// TTL exposes the configured token lifetime.
func (tm *TokenManager) TTL() time.Duration {
	return tm.ttl
}

func (tm *TokenManager) redisKey(token string) string {
	return fmt.Sprintf("%s:%s", tm.prefix, token)
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
