package app

import (
	"context"

	"quizdown-service/internal/domain"
)

// QuizRepository stores parsed quizzes keyed by slug. Saving a quiz whose
// slug already exists replaces it.
type QuizRepository interface {
	Save(ctx context.Context, quiz domain.Quiz) error
	Get(ctx context.Context, slug string) (domain.Quiz, error)
	List(ctx context.Context) ([]domain.Quiz, error)
	DeleteAll(ctx context.Context) (int, error)
}

// SessionRepository abstracts how sessions are stored (in-memory, Redis, etc).
// Implementations store values: a Session returned by Get is never shared
// with another caller.
type SessionRepository interface {
	Get(ctx context.Context, id string) (domain.Session, error)
	Put(ctx context.Context, session domain.Session) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, prefix string) ([]domain.Session, error)
}

// EvaluationRequest is everything the external evaluator sees for one answer.
type EvaluationRequest struct {
	Question       string
	Choices        []string
	CorrectAnswers []string
	Selected       []string
	Topic          string
	Profile        domain.LearnerProfile
	Context        domain.QuizContext

	// Correct is the scored verdict for Selected. Choice texts may repeat,
	// so evaluators must not derive it from the texts above.
	Correct bool
}

// EvaluationResponse is the evaluator's structured verdict. Profile is the
// learner profile after recording this answer; a zero Profile means unchanged.
type EvaluationResponse struct {
	Error       domain.ErrorEvaluation
	Feedback    domain.Feedback
	Suggestions []domain.Suggestion
	Profile     domain.LearnerProfile
}

// Evaluator classifies one answer. It must return an error rather than
// partial data.
type Evaluator interface {
	Evaluate(ctx context.Context, req EvaluationRequest) (EvaluationResponse, error)
}

// Generator writes new questions in the style of existing ones.
type Generator interface {
	GenerateQuestions(ctx context.Context, topic string, samples []domain.Question, count int) ([]domain.Question, error)
}

// ContextProvider describes a quiz's style for the evaluator.
type ContextProvider interface {
	QuizContext(ctx context.Context, quiz domain.Quiz) (domain.QuizContext, error)
}

type staticContext struct{}

func (staticContext) QuizContext(context.Context, domain.Quiz) (domain.QuizContext, error) {
	return domain.DefaultQuizContext(), nil
}
