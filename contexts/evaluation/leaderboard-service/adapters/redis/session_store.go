package redisadapter

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const SessionKeyPrefix = "ocelot_session:"

// SessionStore keeps browser sessions as expiring keys holding the team token.
type SessionStore struct {
	client *redis.Client
	logger *slog.Logger
}

func NewSessionStore(client *redis.Client, logger *slog.Logger) *SessionStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionStore{
		client: client,
		logger: logger,
	}
}

func (s *SessionStore) CreateSession(ctx context.Context, sessionID string, token string, ttl time.Duration) error {
	if err := s.client.Set(ctx, sessionKey(sessionID), token, ttl).Err(); err != nil {
		s.logger.Error("session write failed",
			"event", "leaderboard_session_write_failed",
			"module", "evaluation/leaderboard-service",
			"layer", "adapter",
			"error", err.Error(),
		)
		return err
	}
	return nil
}

func (s *SessionStore) GetSessionToken(ctx context.Context, sessionID string) (string, bool, error) {
	token, err := s.client.Get(ctx, sessionKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return token, true, nil
}

func (s *SessionStore) DeleteSession(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, sessionKey(sessionID)).Err()
}

func sessionKey(sessionID string) string {
	return SessionKeyPrefix + strings.TrimSpace(sessionID)
}
