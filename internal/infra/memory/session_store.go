package memory

import (
	"context"
	"sync"

	"quizflow/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionStore.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]domain.Session),
	}
}

func (s *SessionStore) Put(_ context.Context, session domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[key(session.QuizID, session.ID)] = cloneSession(session)
	return nil
}

func (s *SessionStore) Get(_ context.Context, quizID, sessionID string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[key(quizID, sessionID)]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return cloneSession(session), nil
}

// cloneSession copies the mutable maps so callers cannot alias the stored record.
func cloneSession(session domain.Session) domain.Session {
	if session.Answers != nil {
		session.Answers = session.Answers.Clone()
	}
	if session.Lead != nil {
		lead := make(map[string]string, len(session.Lead))
		for k, v := range session.Lead {
			lead[k] = v
		}
		session.Lead = lead
	}
	return session
}

func key(quizID, sessionID string) string {
	return quizID + "/" + sessionID
}
