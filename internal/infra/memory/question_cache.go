package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"retroquiz-service/internal/domain"
	"retroquiz-service/internal/quiz"
)

// QuestionLoader fetches the full question bank from a backing store.
type QuestionLoader interface {
	AllQuestions(ctx context.Context) ([]domain.Question, error)
}

// QuestionCache holds the question bank in process memory with a TTL so
// concurrent sessions starting together hit the store once, not once each.
type QuestionCache struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	bank      []domain.Question
	expiresAt time.Time
}

func NewQuestionCache(loader QuestionLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// RandomQuestions samples from the cached bank, refreshing it through the
// loader when the TTL has lapsed.
func (c *QuestionCache) RandomQuestions(ctx context.Context, count int) ([]domain.Question, error) {
	bank, err := c.questions(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	sample := quiz.Sample(c.rnd, bank, count)
	c.mu.Unlock()
	return sample, nil
}

func (c *QuestionCache) questions(ctx context.Context) ([]domain.Question, error) {
	now := c.clock()

	c.mu.RLock()
	if c.bank != nil && c.expiresAt.After(now) {
		bank := c.bank
		c.mu.RUnlock()
		return bank, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do("bank", func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if c.bank != nil && c.expiresAt.After(now) {
			bank := c.bank
			c.mu.RUnlock()
			return bank, nil
		}
		c.mu.RUnlock()

		bank, err := c.loader.AllQuestions(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.bank = bank
		c.expiresAt = now.Add(c.ttlWithJitter())
		c.mu.Unlock()
		return bank, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

// StaticQuestionLoader serves a fixed bank (useful for tests and demos).
type StaticQuestionLoader struct {
	questions []domain.Question
}

func NewStaticQuestionLoader(questions []domain.Question) *StaticQuestionLoader {
	return &StaticQuestionLoader{questions: questions}
}

func (l *StaticQuestionLoader) AllQuestions(_ context.Context) ([]domain.Question, error) {
	out := make([]domain.Question, len(l.questions))
	copy(out, l.questions)
	return out, nil
}
