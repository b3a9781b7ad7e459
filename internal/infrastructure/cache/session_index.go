package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// SessionIndex is a fast liveness index over sessions whose
// authoritative records live in the credential store. A miss here is
// not a revocation; callers fall back to the store. A tombstone here
// IS a revocation and short-circuits the lookup.
type SessionIndex interface {
	MarkLive(ctx context.Context, sessionID uuid.UUID, ttl time.Duration) error
	MarkRevoked(ctx context.Context, sessionID uuid.UUID, ttl time.Duration) error
	// Check returns (live, known). known=false means the index has no
	// opinion and the store must be consulted.
	Check(ctx context.Context, sessionID uuid.UUID) (bool, bool, error)
}

type redisSessionIndex struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisSessionIndex creates a Redis-backed session liveness index.
func NewRedisSessionIndex(client *redis.Client, logger *zap.Logger) SessionIndex {
	return &redisSessionIndex{client: client, logger: logger}
}

func (s *redisSessionIndex) key(id uuid.UUID) string {
	return SessionPrefix + id.String()
}

func (s *redisSessionIndex) MarkLive(ctx context.Context, sessionID uuid.UUID, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(sessionID), "live", ttl).Err(); err != nil {
		return fmt.Errorf("session index set failed: %w", err)
	}
	return nil
}

func (s *redisSessionIndex) MarkRevoked(ctx context.Context, sessionID uuid.UUID, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(sessionID), "revoked", ttl).Err(); err != nil {
		return fmt.Errorf("session index revoke failed: %w", err)
	}
	return nil
}

func (s *redisSessionIndex) Check(ctx context.Context, sessionID uuid.UUID) (bool, bool, error) {
	val, err := s.client.Get(ctx, s.key(sessionID)).Result()
	if err == redis.Nil {
		return false, false, nil
	}
	if err != nil {
		s.logger.Warn("session index lookup failed",
			zap.String("session_id", sessionID.String()),
			zap.Error(err))
		return false, false, fmt.Errorf("session index lookup failed: %w", err)
	}
	return val == "live", true, nil
}
