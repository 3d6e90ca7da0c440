// Package redis shares conversation drafts between bot instances.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"carpoolbot/pkg/errs"
	"carpoolbot/pkg/logger"
	"carpoolbot/pkg/models"
)

const keyPrefix = "carpool:session:"

// Client is the subset of go-redis the session store needs.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// SessionStore keeps one JSON document per user. The key expires after the
// idle timeout and every Put refreshes it.
type SessionStore struct {
	rc   Client
	idle time.Duration
	log  logger.ILogger
}

func NewSessionStore(rc Client, idle time.Duration, log logger.ILogger) *SessionStore {
	return &SessionStore{rc: rc, idle: idle, log: log}
}

// NewClient builds a go-redis client for addr.
func NewClient(addr, password string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr, Password: password})
}

func (s *SessionStore) Get(ctx context.Context, userID string) (*models.Session, error) {
	raw, err := s.rc.Get(ctx, keyPrefix+userID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		s.log.Error("failed to read session", logger.String("user_id", userID), logger.Error(err))
		return nil, errs.Unavailable(err, "get session")
	}

	var sess models.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		s.log.Warning("dropping unreadable session", logger.String("user_id", userID), logger.Error(err))
		_ = s.Remove(ctx, userID)
		return nil, nil
	}
	return &sess, nil
}

func (s *SessionStore) Put(ctx context.Context, sess *models.Session) error {
	cp := *sess
	cp.UpdatedAt = time.Now()
	raw, err := json.Marshal(cp)
	if err != nil {
		return errs.Wrap(err, "encode session")
	}
	if err := s.rc.Set(ctx, keyPrefix+sess.UserID, raw, s.idle).Err(); err != nil {
		s.log.Error("failed to write session", logger.String("user_id", sess.UserID), logger.Error(err))
		return errs.Unavailable(err, "put session")
	}
	return nil
}

func (s *SessionStore) Remove(ctx context.Context, userID string) error {
	if err := s.rc.Del(ctx, keyPrefix+userID).Err(); err != nil {
		s.log.Error("failed to remove session", logger.String("user_id", userID), logger.Error(err))
		return errs.Unavailable(err, "remove session")
	}
	return nil
}
