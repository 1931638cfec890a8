package memory

import (
	"context"
	"sync"

	"quizdown-service/internal/domain"
)

// QuizRepository is an in-memory implementation of app.QuizRepository.
// It stores deep copies keyed by slug; saving an existing slug replaces it.
type QuizRepository struct {
	mu      sync.RWMutex
	quizzes map[string]domain.Quiz
}

func NewQuizRepository() *QuizRepository {
	return &QuizRepository{quizzes: make(map[string]domain.Quiz)}
}

func (r *QuizRepository) Save(_ context.Context, quiz domain.Quiz) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.quizzes[quiz.Slug()] = quiz.Clone()
	return nil
}

func (r *QuizRepository) Get(_ context.Context, slug string) (domain.Quiz, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	quiz, ok := r.quizzes[slug]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return quiz.Clone(), nil
}

func (r *QuizRepository) List(_ context.Context) ([]domain.Quiz, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Quiz, 0, len(r.quizzes))
	for _, quiz := range r.quizzes {
		out = append(out, quiz.Clone())
	}
	return out, nil
}

func (r *QuizRepository) DeleteAll(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.quizzes)
	r.quizzes = make(map[string]domain.Quiz)
	return n, nil
}
