package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"quizflow/internal/domain"
)

// SessionStore keeps session records as JSON values with a TTL, so partial
// completions survive process restarts and expire on their own once
// abandoned. Keys: quiz:{quizID}:session:{sessionID}.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) Put(ctx context.Context, session domain.Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(session.QuizID, session.ID), raw, s.ttl).Err()
}

func (s *SessionStore) Get(ctx context.Context, quizID, sessionID string) (domain.Session, error) {
	raw, err := s.client.Get(ctx, s.key(quizID, sessionID)).Result()
	if err == redis.Nil {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, err
	}
	var session domain.Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return domain.Session{}, err
	}
	return session, nil
}

func (s *SessionStore) key(quizID, sessionID string) string {
	return "quiz:" + quizID + ":session:" + sessionID
}
