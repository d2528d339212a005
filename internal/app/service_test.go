package app_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"quizflow/internal/app"
	"quizflow/internal/domain"
	"quizflow/internal/infra/memory"
)

func intp(n int) *int { return &n }

func testQuiz() domain.Quiz {
	return domain.Quiz{
		ID: "quiz-1",
		Questions: []domain.Question{
			{
				ID:       "q1",
				Type:     domain.SingleChoice,
				Position: 1,
				Options: []domain.AnswerOption{
					{ID: "o1", Points: 2},
					{ID: "o2", Points: 8},
				},
			},
			{
				ID:       "q2",
				Type:     domain.MultipleChoice,
				Position: 2,
				Options: []domain.AnswerOption{
					{ID: "o3", Points: 1},
					{ID: "o4", Points: 1},
				},
			},
		},
		Results: []domain.QuizResult{
			{ID: "low", Title: "Getting there", MinScore: intp(0), MaxScore: intp(5)},
			{ID: "high", Title: "Ready", MinScore: intp(6)},
		},
	}
}

func newTestService() *app.Service {
	loader := memory.NewStaticDefinitionLoader(map[string]domain.Quiz{
		"quiz-1": testQuiz(),
	})
	quizzes := memory.NewDefinitionCache(loader, 5*time.Minute)
	store := memory.NewSessionStore()
	seq := 0
	return app.NewServiceWithClock(quizzes, store, nil,
		func() string { seq++; return fmt.Sprintf("sess-%d", seq) },
		func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) },
	)
}

func TestOpenSessionUnknownQuiz(t *testing.T) {
	service := newTestService()
	if _, err := service.OpenSession(context.Background(), "nope", domain.SessionAttribution{}); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	service := newTestService()

	session, err := service.OpenSession(ctx, "quiz-1", domain.SessionAttribution{UTMSource: "fb"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if session.ID == "" || session.Completed() {
		t.Fatalf("unexpected fresh session: %+v", session)
	}

	session, err = service.SyncAnswers(ctx, "quiz-1", session.ID, domain.AnswerSet{"q1": "o1"})
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	// Last write wins per question id.
	session, err = service.SyncAnswers(ctx, "quiz-1", session.ID, domain.AnswerSet{"q1": "o2"})
	if err != nil {
		t.Fatalf("sync 2: %v", err)
	}
	if session.Answers["q1"] != "o2" {
		t.Fatalf("expected last write to win, got %v", session.Answers["q1"])
	}

	session, err = service.CompleteSession(ctx, "quiz-1", session.ID, nil,
		domain.AnswerSet{"q2": []any{"o3", "o4"}})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !session.Completed() {
		t.Fatalf("expected completed session")
	}
	if session.Score != 10 {
		t.Fatalf("expected score 10, got %d", session.Score)
	}
	if session.ResultID != "high" {
		t.Fatalf("expected high tier, got %q", session.ResultID)
	}
}

func TestSyncAfterCompleteRejected(t *testing.T) {
	ctx := context.Background()
	service := newTestService()

	session, _ := service.OpenSession(ctx, "quiz-1", domain.SessionAttribution{})
	if _, err := service.CompleteSession(ctx, "quiz-1", session.ID, nil, domain.AnswerSet{"q1": "o1"}); err != nil {
		t.Fatalf("complete: %v", err)
	}

	if _, err := service.SyncAnswers(ctx, "quiz-1", session.ID, domain.AnswerSet{"q1": "o2"}); !errors.Is(err, domain.ErrSessionCompleted) {
		t.Fatalf("expected ErrSessionCompleted, got %v", err)
	}
	if _, err := service.CompleteSession(ctx, "quiz-1", session.ID, nil, domain.AnswerSet{"q1": "o2"}); !errors.Is(err, domain.ErrSessionCompleted) {
		t.Fatalf("expected second full complete rejected, got %v", err)
	}
}

func TestLeadOnlyRetargetAfterComplete(t *testing.T) {
	ctx := context.Background()
	service := newTestService()

	session, _ := service.OpenSession(ctx, "quiz-1", domain.SessionAttribution{})
	completed, err := service.CompleteSession(ctx, "quiz-1", session.ID, nil, domain.AnswerSet{"q1": "o2"})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}

	retargeted, err := service.CompleteSession(ctx, "quiz-1", session.ID,
		map[string]string{"email": "a@b.c"}, nil)
	if err != nil {
		t.Fatalf("lead-only retarget: %v", err)
	}
	if retargeted.ID != completed.ID {
		t.Fatalf("session id changed across completes")
	}
	if retargeted.Lead["email"] != "a@b.c" {
		t.Fatalf("expected lead merged, got %+v", retargeted.Lead)
	}
	if retargeted.Score != completed.Score {
		t.Fatalf("lead-only retarget must not rescore")
	}
}

func TestSessionNotFound(t *testing.T) {
	service := newTestService()
	if _, err := service.SyncAnswers(context.Background(), "quiz-1", "ghost", domain.AnswerSet{}); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestWatchReceivesSessionEvents(t *testing.T) {
	ctx := context.Background()
	service := newTestService()

	session, err := service.OpenSession(ctx, "quiz-1", domain.SessionAttribution{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	events, cancel := service.Watch("quiz-1", session.ID)
	defer cancel()

	if _, err := service.SyncAnswers(ctx, "quiz-1", session.ID, domain.AnswerSet{"q1": "o2"}); err != nil {
		t.Fatalf("sync: %v", err)
	}
	event := <-events
	if event.Type != "answer" || event.Session.Answers["q1"] != "o2" {
		t.Fatalf("unexpected event: %+v", event)
	}

	if _, err := service.CompleteSession(ctx, "quiz-1", session.ID, nil, nil); err != nil {
		t.Fatalf("complete: %v", err)
	}
	event = <-events
	if event.Type != "completed" || !event.Session.Completed() {
		t.Fatalf("unexpected event: %+v", event)
	}
}

func TestGetQuizPreviewBypassesCache(t *testing.T) {
	ctx := context.Background()
	service := newTestService()

	if _, err := service.GetQuiz(ctx, "quiz-1", false); err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, err := service.GetQuiz(ctx, "quiz-1", true); err != nil {
		t.Fatalf("preview get: %v", err)
	}
}
