package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quizdown-service/internal/app"
	"quizdown-service/internal/domain"
)

// ContextCache caches quiz style context per slug with TTL so repeated
// submits on one quiz do not re-run extraction.
type ContextCache struct {
	provider app.ContextProvider
	ttl      time.Duration
	clock    func() time.Time
	sf       singleflight.Group

	mu    sync.RWMutex
	rnd   *rand.Rand
	cache map[string]cachedContext
}

type cachedContext struct {
	quizCtx   domain.QuizContext
	expiresAt time.Time
}

// NewContextCache wraps provider. A zero ttl caches forever.
func NewContextCache(provider app.ContextProvider, ttl time.Duration) *ContextCache {
	return &ContextCache{
		provider: provider,
		ttl:      ttl,
		clock:    time.Now,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:    make(map[string]cachedContext),
	}
}

func (c *ContextCache) QuizContext(ctx context.Context, quiz domain.Quiz) (domain.QuizContext, error) {
	key := quiz.Slug()
	if quizCtx, ok := c.lookup(key, c.clock()); ok {
		return quizCtx, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		now := c.clock()
		if quizCtx, ok := c.lookup(key, now); ok {
			return quizCtx, nil
		}

		quizCtx, err := c.provider.QuizContext(ctx, quiz)
		if err != nil {
			return domain.QuizContext{}, err
		}

		expiresAt := c.expiry(now)
		c.mu.Lock()
		c.cache[key] = cachedContext{quizCtx: quizCtx, expiresAt: expiresAt}
		c.mu.Unlock()
		return quizCtx, nil
	})
	if err != nil {
		return domain.QuizContext{}, err
	}
	return result.(domain.QuizContext), nil
}

// Invalidate forgets the cached context for slug.
func (c *ContextCache) Invalidate(slug string) {
	c.mu.Lock()
	delete(c.cache, slug)
	c.mu.Unlock()
}

func (c *ContextCache) lookup(key string, now time.Time) (domain.QuizContext, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[key]
	if !ok || (!entry.expiresAt.IsZero() && !entry.expiresAt.After(now)) {
		return domain.QuizContext{}, false
	}
	return entry.quizCtx, true
}

// expiry takes c.mu for rnd; callers must not hold it.
func (c *ContextCache) expiry(now time.Time) time.Time {
	if c.ttl <= 0 {
		return time.Time{}
	}
	c.mu.Lock()
	// add up to 10% jitter to spread expirations
	jitter := time.Duration(c.rnd.Int63n(int64(c.ttl)/10 + 1))
	c.mu.Unlock()
	return now.Add(c.ttl + jitter)
}
