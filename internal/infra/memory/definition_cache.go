package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quizflow/internal/domain"
)

// DefinitionLoader fetches quiz definitions from a backing store (e.g., Postgres).
type DefinitionLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// DefinitionCache caches quiz definitions with TTL to avoid repeated store
// hits; definitions are immutable for the duration of a session, so a stale
// read is acceptable within the TTL.
type DefinitionCache struct {
	loader DefinitionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedQuiz
}

type cachedQuiz struct {
	quiz      domain.Quiz
	expiresAt time.Time
}

func NewDefinitionCache(loader DefinitionLoader, ttl time.Duration) *DefinitionCache {
	return &DefinitionCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedQuiz),
	}
}

func (c *DefinitionCache) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[quizID]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.quiz, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(quizID, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[quizID]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.quiz, nil
		}
		c.mu.RUnlock()
		return c.loadAndStore(ctx, quizID)
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

// RefreshQuiz bypasses the cache and re-stores the fresh definition;
// authoring previews use this to see edits immediately.
func (c *DefinitionCache) RefreshQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	quiz, err := c.loadAndStore(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	return quiz.(domain.Quiz), nil
}

func (c *DefinitionCache) loadAndStore(ctx context.Context, quizID string) (interface{}, error) {
	quiz, err := c.loader.LoadQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	c.mu.Lock()
	c.cache[quizID] = cachedQuiz{
		quiz:      quiz,
		expiresAt: c.clock().Add(c.ttlWithJitter()),
	}
	c.mu.Unlock()
	return quiz, nil
}

func (c *DefinitionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

// StaticDefinitionLoader is a simple loader backed by an in-memory map
// (useful for tests/demos).
type StaticDefinitionLoader struct {
	quizzes map[string]domain.Quiz
}

func NewStaticDefinitionLoader(quizzes map[string]domain.Quiz) *StaticDefinitionLoader {
	return &StaticDefinitionLoader{quizzes: quizzes}
}

func (l *StaticDefinitionLoader) LoadQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := l.quizzes[quizID]; ok {
		return quiz, nil
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}
