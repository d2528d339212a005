package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"quizflow/internal/domain"
	"quizflow/internal/infra/memory"
)

func TestDefinitionCacheCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)
	loader := &countingLoader{
		DefinitionLoader: memory.NewStaticDefinitionLoader(map[string]domain.Quiz{
			"quiz-1": sampleQuiz(),
		}),
	}
	cache := NewDefinitionCache(client, loader, time.Minute)

	quiz, err := cache.GetQuiz(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if len(quiz.Questions) != 1 || quiz.Questions[0].ID != "q1" {
		t.Fatalf("unexpected quiz: %+v", quiz)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if !mr.Exists("quiz:quiz-1:definition") {
		t.Fatalf("expected definition cached in redis")
	}

	// Second call should hit the redis cache.
	if _, err := cache.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
}

func TestDefinitionCacheRefreshReloads(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{
		DefinitionLoader: memory.NewStaticDefinitionLoader(map[string]domain.Quiz{
			"quiz-1": sampleQuiz(),
		}),
	}
	cache := NewDefinitionCache(newClient(mr), loader, time.Minute)

	if _, err := cache.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if _, err := cache.RefreshQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("expected refresh to reload, calls=%d", loader.calls)
	}
}

type countingLoader struct {
	DefinitionLoader
	calls int
}

func (l *countingLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	l.calls++
	return l.DefinitionLoader.LoadQuiz(ctx, quizID)
}

func sampleQuiz() domain.Quiz {
	five := 5
	return domain.Quiz{
		ID: "quiz-1",
		Questions: []domain.Question{
			{
				ID:       "q1",
				Type:     domain.SingleChoice,
				Position: 1,
				Options: []domain.AnswerOption{
					{ID: "o1"},
					{ID: "o2", Points: 5},
				},
			},
		},
		Results: []domain.QuizResult{
			{ID: "r1", MinScore: &five},
		},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
