package http

import (
	"time"

	"quizdown-service/internal/domain"
)

// questionView hides correctness from learners.
type questionView struct {
	Index    int      `json:"index"`
	Text     string   `json:"text"`
	Choices  []string `json:"choices"`
	Multiple bool     `json:"multiple"`
}

type quizView struct {
	Slug      string         `json:"slug"`
	Topic     string         `json:"topic"`
	TimeLimit int            `json:"timeLimit"`
	Questions []questionView `json:"questions"`
}

type sessionView struct {
	ID          string                            `json:"id"`
	Slug        string                            `json:"slug"`
	Topic       string                            `json:"topic"`
	Status      domain.SessionStatus              `json:"status"`
	TimeLimit   int                               `json:"timeLimit"`
	StartedAt   time.Time                         `json:"startedAt"`
	SubmittedAt *time.Time                        `json:"submittedAt,omitempty"`
	Questions   []questionView                    `json:"questions"`
	Evaluations map[int]domain.ResponseEvaluation `json:"evaluations,omitempty"`
	Score       *int                              `json:"score,omitempty"`
	Total       int                               `json:"total"`
	Profile     *domain.LearnerProfile            `json:"profile,omitempty"`
}

func newQuestionViews(questions []domain.Question) []questionView {
	out := make([]questionView, len(questions))
	for i, q := range questions {
		out[i] = questionView{
			Index:    i,
			Text:     q.Text,
			Choices:  domain.ChoiceTexts(q.Choices),
			Multiple: q.Multiple(),
		}
	}
	return out
}

func newQuizView(quiz domain.Quiz) quizView {
	return quizView{
		Slug:      quiz.Slug(),
		Topic:     quiz.Topic,
		TimeLimit: quiz.TimeLimit,
		Questions: newQuestionViews(quiz.Questions),
	}
}

// newSessionView includes results only once the session is completed.
func newSessionView(s domain.Session) sessionView {
	view := sessionView{
		ID:        s.ID,
		Slug:      s.Slug,
		Topic:     s.Quiz.Topic,
		Status:    s.Status,
		TimeLimit: s.Quiz.TimeLimit,
		StartedAt: s.StartedAt,
		Questions: newQuestionViews(s.Quiz.Questions),
		Total:     s.Total(),
	}
	if s.Completed() {
		view.SubmittedAt = s.SubmittedAt
		view.Evaluations = s.Evaluations
		view.Score = s.Score
		profile := s.Profile
		view.Profile = &profile
	}
	return view
}
