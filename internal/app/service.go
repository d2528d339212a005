package app

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"quizflow/internal/domain"
	"quizflow/internal/engine"
)

// DefinitionRepository loads quiz definitions (through cache/backing store).
type DefinitionRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	// RefreshQuiz bypasses the cache; used for authoring previews.
	RefreshQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// SessionStore persists respondent sessions (in-memory, Redis, etc).
type SessionStore interface {
	Put(ctx context.Context, session domain.Session) error
	Get(ctx context.Context, quizID, sessionID string) (domain.Session, error)
}

// Archiver durably persists completed sessions. Archiving is best-effort:
// a failure is logged and never surfaces to the respondent.
type Archiver interface {
	ArchiveSession(ctx context.Context, session domain.Session) error
}

// SessionEvent is published to watchers every time a session changes.
type SessionEvent struct {
	Type    string         `json:"type"` // opened | answer | completed
	Session domain.Session `json:"session"`
}

// Service implements the public quiz API use cases: definition fetch,
// session open, incremental answer sync, and completion with server-side
// score/result recomputation.
type Service struct {
	quizzes  DefinitionRepository
	sessions SessionStore
	archiver Archiver
	newID    func() string
	now      func() time.Time

	mu    sync.Mutex
	feeds map[string]*feed
}

func NewService(quizzes DefinitionRepository, sessions SessionStore, archiver Archiver) *Service {
	return &Service{
		quizzes:  quizzes,
		sessions: sessions,
		archiver: archiver,
		newID:    uuid.NewString,
		now:      time.Now,
		feeds:    make(map[string]*feed),
	}
}

// NewServiceWithClock is test-only for deterministic ids and timestamps.
func NewServiceWithClock(quizzes DefinitionRepository, sessions SessionStore, archiver Archiver, newID func() string, now func() time.Time) *Service {
	s := NewService(quizzes, sessions, archiver)
	s.newID = newID
	s.now = now
	return s
}

// GetQuiz returns the definition, bypassing the cache in preview mode so
// authors see unsaved-but-published edits immediately.
func (s *Service) GetQuiz(ctx context.Context, quizID string, preview bool) (domain.Quiz, error) {
	if preview {
		return s.quizzes.RefreshQuiz(ctx, quizID)
	}
	return s.quizzes.GetQuiz(ctx, quizID)
}

// OpenSession creates a session record for one respondent. Attribution is
// captured at creation time only.
func (s *Service) OpenSession(ctx context.Context, quizID string, attribution domain.SessionAttribution) (domain.Session, error) {
	if _, err := s.quizzes.GetQuiz(ctx, quizID); err != nil {
		return domain.Session{}, err
	}
	session := domain.Session{
		ID:          s.newID(),
		QuizID:      quizID,
		Attribution: attribution,
		Answers:     domain.AnswerSet{},
		CreatedAt:   s.now(),
	}
	if err := s.sessions.Put(ctx, session); err != nil {
		return domain.Session{}, err
	}
	s.publish(quizID, session.ID, SessionEvent{Type: "opened", Session: session})
	return session, nil
}

// SyncAnswers merges an incremental answer patch into the session, last
// write wins per question id. Completed sessions no longer accept answers.
func (s *Service) SyncAnswers(ctx context.Context, quizID, sessionID string, answers domain.AnswerSet) (domain.Session, error) {
	session, err := s.sessions.Get(ctx, quizID, sessionID)
	if err != nil {
		return domain.Session{}, err
	}
	if session.Completed() {
		return domain.Session{}, domain.ErrSessionCompleted
	}
	if session.Answers == nil {
		session.Answers = domain.AnswerSet{}
	}
	for questionID, value := range answers {
		session.Answers[questionID] = value
	}
	if err := s.sessions.Put(ctx, session); err != nil {
		return domain.Session{}, err
	}
	s.publish(quizID, sessionID, SessionEvent{Type: "answer", Session: session})
	return session, nil
}

// CompleteSession finalizes a session: it merges the completion answer set,
// recomputes score and matched result with the engine, and archives the
// record. A second completion carrying answers is rejected; a lead-only
// payload may re-target an already completed session (lead capture shown
// after the result screen).
func (s *Service) CompleteSession(ctx context.Context, quizID, sessionID string, lead map[string]string, answers domain.AnswerSet) (domain.Session, error) {
	session, err := s.sessions.Get(ctx, quizID, sessionID)
	if err != nil {
		return domain.Session{}, err
	}

	if session.Completed() {
		if len(answers) > 0 {
			return domain.Session{}, domain.ErrSessionCompleted
		}
		session.Lead = mergeLead(session.Lead, lead)
		if err := s.sessions.Put(ctx, session); err != nil {
			return domain.Session{}, err
		}
		s.archive(ctx, session)
		s.publish(quizID, sessionID, SessionEvent{Type: "completed", Session: session})
		return session, nil
	}

	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Session{}, err
	}
	if session.Answers == nil {
		session.Answers = domain.AnswerSet{}
	}
	for questionID, value := range answers {
		session.Answers[questionID] = value
	}
	session.Lead = mergeLead(session.Lead, lead)
	session.Score = engine.Score(session.Answers, quiz.Questions)
	if result, ok := engine.Match(quiz.Results, session.Score); ok {
		session.ResultID = result.ID
	}
	completedAt := s.now()
	session.CompletedAt = &completedAt

	if err := s.sessions.Put(ctx, session); err != nil {
		return domain.Session{}, err
	}
	s.archive(ctx, session)
	s.publish(quizID, sessionID, SessionEvent{Type: "completed", Session: session})
	return session, nil
}

func (s *Service) archive(ctx context.Context, session domain.Session) {
	if s.archiver == nil {
		return
	}
	if err := s.archiver.ArchiveSession(ctx, session); err != nil {
		log.Printf("archive session %s: %v", session.ID, err)
	}
}

func mergeLead(existing map[string]string, lead map[string]string) map[string]string {
	if len(lead) == 0 {
		return existing
	}
	if existing == nil {
		existing = make(map[string]string, len(lead))
	}
	for k, v := range lead {
		existing[k] = v
	}
	return existing
}
