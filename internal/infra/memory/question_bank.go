package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"retroquiz-service/internal/domain"
	"retroquiz-service/internal/quiz"
)

// QuestionBank is a mutable in-memory question repository. It backs the
// question management API when no relational store is configured.
type QuestionBank struct {
	mu        sync.RWMutex
	questions []domain.Question
	nextID    int64
	rnd       *rand.Rand
}

func NewQuestionBank(seed []domain.Question) *QuestionBank {
	b := &QuestionBank{
		questions: make([]domain.Question, len(seed)),
		nextID:    1,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	copy(b.questions, seed)
	for _, q := range seed {
		if q.ID >= b.nextID {
			b.nextID = q.ID + 1
		}
	}
	return b
}

func (b *QuestionBank) AllQuestions(_ context.Context) ([]domain.Question, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]domain.Question, len(b.questions))
	copy(out, b.questions)
	return out, nil
}

func (b *QuestionBank) RandomQuestions(_ context.Context, count int) ([]domain.Question, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return quiz.Sample(b.rnd, b.questions, count), nil
}

func (b *QuestionBank) CreateQuestion(_ context.Context, q *domain.Question) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	stored := *q
	stored.ID = b.nextID
	b.nextID++
	b.questions = append(b.questions, stored)
	return stored.ID, nil
}

func (b *QuestionBank) UpdateQuestion(_ context.Context, q *domain.Question) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.questions {
		if b.questions[i].ID == q.ID {
			b.questions[i] = *q
			return nil
		}
	}
	return domain.ErrQuestionNotFound
}

func (b *QuestionBank) DeleteQuestion(_ context.Context, id int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.questions {
		if b.questions[i].ID == id {
			b.questions = append(b.questions[:i], b.questions[i+1:]...)
			return nil
		}
	}
	return domain.ErrQuestionNotFound
}
