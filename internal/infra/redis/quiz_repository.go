package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quizdown-service/internal/app"
	"quizdown-service/internal/domain"
)

const quizKeyPrefix = "quiz:doc:"

// QuizRepository caches quizzes in Redis as JSON under quiz:doc:{slug} and
// reads through to a backing repository on a miss. Writes go to the backing
// repository first, then to the cache.
type QuizRepository struct {
	client  *redis.Client
	backing app.QuizRepository
	ttl     time.Duration
	sf      singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuizRepository(client *redis.Client, backing app.QuizRepository, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		client:  client,
		backing: backing,
		ttl:     ttl,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuizRepository) Save(ctx context.Context, quiz domain.Quiz) error {
	if err := r.backing.Save(ctx, quiz); err != nil {
		return err
	}
	return r.cache(ctx, quiz)
}

func (r *QuizRepository) Get(ctx context.Context, slug string) (domain.Quiz, error) {
	if quiz, ok := r.cached(ctx, slug); ok {
		return quiz, nil
	}

	result, err, _ := r.sf.Do(slug, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if quiz, ok := r.cached(ctx, slug); ok {
			return quiz, nil
		}
		quiz, err := r.backing.Get(ctx, slug)
		if err != nil {
			return domain.Quiz{}, err
		}
		// best-effort: a failed cache write still serves the loaded quiz
		_ = r.cache(ctx, quiz)
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz).Clone(), nil
}

func (r *QuizRepository) List(ctx context.Context) ([]domain.Quiz, error) {
	return r.backing.List(ctx)
}

func (r *QuizRepository) DeleteAll(ctx context.Context) (int, error) {
	n, err := r.backing.DeleteAll(ctx)
	if err != nil {
		return 0, err
	}
	keys, err := scanKeys(ctx, r.client, quizKeyPrefix+"*")
	if err != nil {
		return n, fmt.Errorf("scan quiz cache: %w", err)
	}
	if len(keys) > 0 {
		if err := r.client.Del(ctx, keys...).Err(); err != nil {
			return n, fmt.Errorf("clear quiz cache: %w", err)
		}
	}
	return n, nil
}

func (r *QuizRepository) cached(ctx context.Context, slug string) (domain.Quiz, bool) {
	data, err := r.client.Get(ctx, quizKeyPrefix+slug).Bytes()
	if err != nil {
		return domain.Quiz{}, false
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(data, &quiz); err != nil {
		return domain.Quiz{}, false
	}
	return quiz, true
}

func (r *QuizRepository) cache(ctx context.Context, quiz domain.Quiz) error {
	data, err := json.Marshal(quiz)
	if err != nil {
		return fmt.Errorf("encode quiz: %w", err)
	}
	if err := r.client.Set(ctx, quizKeyPrefix+quiz.Slug(), data, r.ttlWithJitter()).Err(); err != nil {
		return fmt.Errorf("cache quiz: %w", err)
	}
	return nil
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

func scanKeys(ctx context.Context, client *redis.Client, pattern string) ([]string, error) {
	var keys []string
	iter := client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	return keys, nil
}
