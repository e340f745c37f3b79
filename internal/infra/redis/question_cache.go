// Package redis caches the question bank in Redis so multiple service
// instances share one warm copy and survive process restarts without a
// thundering herd on the relational store.
package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"retroquiz-service/internal/domain"
	"retroquiz-service/internal/quiz"
)

const bankKey = "questions:bank"

// QuestionLoader fetches the full question bank from a backing store.
type QuestionLoader interface {
	AllQuestions(ctx context.Context) ([]domain.Question, error)
}

// cachedQuestion carries the correct option through the cache; the domain
// type hides it from JSON on purpose, so the cache uses its own shape.
type cachedQuestion struct {
	ID         int64  `json:"id"`
	Prompt     string `json:"prompt"`
	OptionA    string `json:"optionA"`
	OptionB    string `json:"optionB"`
	OptionC    string `json:"optionC"`
	OptionD    string `json:"optionD"`
	Correct    string `json:"correct"`
	Category   string `json:"category"`
	Difficulty string `json:"difficulty"`
}

// QuestionCache stores the serialized bank under a single key and falls back
// to a loader on cache miss.
type QuestionCache struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuestionCache(client *redis.Client, loader QuestionLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// RandomQuestions samples from the cached bank, loading and filling the
// cache on miss. A failed cache write is not an error; the bank already
// loaded is still good.
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
	if bank, ok := c.fromCache(ctx); ok {
		return bank, nil
	}

	result, err, _ := c.sf.Do(bankKey, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if bank, ok := c.fromCache(ctx); ok {
			return bank, nil
		}

		bank, err := c.loader.AllQuestions(ctx)
		if err != nil {
			return nil, err
		}

		if payload, err := json.Marshal(toCached(bank)); err == nil {
			_ = c.client.Set(ctx, bankKey, payload, c.ttlWithJitter()).Err()
		}
		return bank, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (c *QuestionCache) fromCache(ctx context.Context) ([]domain.Question, bool) {
	payload, err := c.client.Get(ctx, bankKey).Bytes()
	if err != nil {
		return nil, false
	}
	var cached []cachedQuestion
	if err := json.Unmarshal(payload, &cached); err != nil || len(cached) == 0 {
		return nil, false
	}
	return fromCached(cached), true
}

func toCached(bank []domain.Question) []cachedQuestion {
	cached := make([]cachedQuestion, 0, len(bank))
	for _, q := range bank {
		cached = append(cached, cachedQuestion{
			ID:         q.ID,
			Prompt:     q.Prompt,
			OptionA:    q.OptionA,
			OptionB:    q.OptionB,
			OptionC:    q.OptionC,
			OptionD:    q.OptionD,
			Correct:    string(q.Correct),
			Category:   q.Category,
			Difficulty: q.Difficulty,
		})
	}
	return cached
}

func fromCached(cached []cachedQuestion) []domain.Question {
	bank := make([]domain.Question, 0, len(cached))
	for _, cq := range cached {
		q := domain.Question{
			ID:         cq.ID,
			Prompt:     cq.Prompt,
			OptionA:    cq.OptionA,
			OptionB:    cq.OptionB,
			OptionC:    cq.OptionC,
			OptionD:    cq.OptionD,
			Category:   cq.Category,
			Difficulty: cq.Difficulty,
		}
		if len(cq.Correct) > 0 {
			q.Correct = domain.OptionTag(cq.Correct[0])
		}
		bank = append(bank, q)
	}
	return bank
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
