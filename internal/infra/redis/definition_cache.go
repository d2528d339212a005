package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quizflow/internal/domain"
)

// DefinitionLoader fetches quiz definitions from a backing store (e.g., Postgres).
type DefinitionLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// DefinitionCache caches full quiz definitions in Redis as JSON
// (SET quiz:{quizID}:definition) and falls back to a loader on cache miss,
// so every embed instance behind the API shares one cache.
type DefinitionCache struct {
	client *redis.Client
	loader DefinitionLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewDefinitionCache(client *redis.Client, loader DefinitionLoader, ttl time.Duration) *DefinitionCache {
	return &DefinitionCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *DefinitionCache) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	key := c.key(quizID)

	if quiz, ok := c.cached(ctx, key); ok {
		return quiz, nil
	}

	result, err, _ := c.sf.Do(quizID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if quiz, ok := c.cached(ctx, key); ok {
			return quiz, nil
		}
		return c.loadAndStore(ctx, quizID)
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

// RefreshQuiz bypasses the cache and re-stores the fresh definition
// (authoring preview).
func (c *DefinitionCache) RefreshQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	quiz, err := c.loadAndStore(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	return quiz.(domain.Quiz), nil
}

func (c *DefinitionCache) cached(ctx context.Context, key string) (domain.Quiz, bool) {
	raw, err := c.client.Get(ctx, key).Result()
	if err != nil {
		return domain.Quiz{}, false
	}
	var quiz domain.Quiz
	if err := json.Unmarshal([]byte(raw), &quiz); err != nil {
		// A corrupt entry behaves as a miss and gets overwritten.
		return domain.Quiz{}, false
	}
	return quiz, true
}

func (c *DefinitionCache) loadAndStore(ctx context.Context, quizID string) (interface{}, error) {
	quiz, err := c.loader.LoadQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	if raw, err := json.Marshal(quiz); err == nil {
		// best-effort cache fill
		_ = c.client.Set(ctx, c.key(quizID), raw, c.ttlWithJitter()).Err()
	}
	return quiz, nil
}

func (c *DefinitionCache) key(quizID string) string {
	return "quiz:" + quizID + ":definition"
}

func (c *DefinitionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
