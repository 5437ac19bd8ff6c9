package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ayush/storefinder/internal/web"
)

const flashTTL = 10 * time.Minute

// SessionStore wraps Redis for session management.
// Keys: session:<sid> -> user id, flash:<sid> -> list of JSON flashes.
type SessionStore struct {
	rdb *redis.Client
}

func NewSessionStore(rdb *redis.Client) *SessionStore {
	return &SessionStore{rdb: rdb}
}

// Create stores a new session mapping sessionID -> userID.
func (s *SessionStore) Create(ctx context.Context, userID string) (string, error) {
	sid := uuid.New().String()
	err := s.rdb.Set(ctx, "session:"+sid, userID, web.SessionTTL).Err()
	return sid, err
}

// Get returns the userID for a session, or "" if not found / expired.
func (s *SessionStore) Get(ctx context.Context, sessionID string) (string, error) {
	val, err := s.rdb.Get(ctx, "session:"+sessionID).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return val, err
}

// Delete removes a session and its pending flashes.
func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	return s.rdb.Del(ctx, "session:"+sessionID, "flash:"+sessionID).Err()
}

// AddFlash appends a flash to the session's queue.
func (s *SessionStore) AddFlash(ctx context.Context, sessionID string, f web.Flash) error {
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}
	key := "flash:" + sessionID
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.RPush(ctx, key, b)
		p.Expire(ctx, key, flashTTL)
		return nil
	})
	return err
}

// PopFlashes returns and clears the session's queued flashes.
func (s *SessionStore) PopFlashes(ctx context.Context, sessionID string) ([]web.Flash, error) {
	key := "flash:" + sessionID
	var lrange *redis.StringSliceCmd
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		lrange = p.LRange(ctx, key, 0, -1)
		p.Del(ctx, key)
		return nil
	})
	if err != nil {
		return nil, err
	}

	flashes := make([]web.Flash, 0, len(lrange.Val()))
	for _, raw := range lrange.Val() {
		var f web.Flash
		if err := json.Unmarshal([]byte(raw), &f); err != nil {
			return nil, fmt.Errorf("decode flash: %w", err)
		}
		flashes = append(flashes, f)
	}
	return flashes, nil
}
