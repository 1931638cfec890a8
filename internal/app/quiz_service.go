package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"quizdown-service/internal/domain"
	"quizdown-service/internal/markup"
	"quizdown-service/internal/metrics"
)

// Submission results recorded in metrics.
const (
	submitOK       = "ok"
	submitRejected = "rejected"
	submitError    = "error"
)

// Session ids are {slug}:{unique}; slugs never contain the separator, so
// listing by slug prefix is exact.
const sessionIDSeparator = ":"

// SessionID builds the id of a session on slug.
func SessionID(slug, unique string) string {
	return slug + sessionIDSeparator + unique
}

// QuizService contains the core quiz use cases.
type QuizService struct {
	quizzes      QuizRepository
	sessions     SessionRepository
	orchestrator *Orchestrator
	generator    Generator
	contexts     ContextProvider
	parser       *markup.Parser
	shuffle      domain.ShuffleFunc
	now          func() time.Time
	newID        func() string
	logger       *zap.Logger
	metrics      *metrics.Metrics
	locks        *keyedMutex
}

// Option configures a QuizService.
type Option func(*QuizService)

// WithGenerator enables GenerateQuestions.
func WithGenerator(g Generator) Option {
	return func(s *QuizService) { s.generator = g }
}

// WithContextProvider sets where quiz style context comes from.
func WithContextProvider(p ContextProvider) Option {
	return func(s *QuizService) { s.contexts = p }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *QuizService) { s.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *QuizService) { s.metrics = m }
}

// WithClock is used by tests for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *QuizService) { s.now = now }
}

// WithShuffle replaces the randomness used for question order and parsing.
func WithShuffle(shuffle domain.ShuffleFunc) Option {
	return func(s *QuizService) {
		s.shuffle = shuffle
		s.parser = markup.NewParser(shuffle)
	}
}

// WithIDGenerator replaces the uuid part of session ids.
func WithIDGenerator(newID func() string) Option {
	return func(s *QuizService) { s.newID = newID }
}

func NewQuizService(quizzes QuizRepository, sessions SessionRepository, orchestrator *Orchestrator, opts ...Option) *QuizService {
	s := &QuizService{
		quizzes:      quizzes,
		sessions:     sessions,
		orchestrator: orchestrator,
		contexts:     staticContext{},
		parser:       markup.NewParser(nil),
		now:          time.Now,
		newID:        func() string { return uuid.NewString() },
		logger:       zap.NewNop(),
		locks:        newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ImportDocument parses content and stores every quiz found in it.
func (s *QuizService) ImportDocument(ctx context.Context, content, source string) ([]domain.Quiz, error) {
	if strings.TrimSpace(content) == "" {
		return nil, domain.ErrEmptyDocument
	}
	quizzes := s.parser.Parse(content, source)
	if len(quizzes) == 0 {
		return nil, domain.ErrNoQuizzesFound
	}
	for _, quiz := range quizzes {
		if existing, err := s.quizzes.Get(ctx, quiz.Slug()); err == nil && existing.Topic != quiz.Topic {
			s.logger.Warn("quiz slug collision, replacing stored quiz",
				zap.String("slug", quiz.Slug()),
				zap.String("stored_topic", existing.Topic),
				zap.String("topic", quiz.Topic),
			)
		}
		if err := s.quizzes.Save(ctx, quiz); err != nil {
			return nil, fmt.Errorf("save quiz %q: %w", quiz.Slug(), err)
		}
		s.invalidateContext(quiz.Slug())
	}
	s.logger.Info("imported quiz document",
		zap.String("source", source),
		zap.Int("quizzes", len(quizzes)),
	)
	return quizzes, nil
}

// ListQuizzes returns summaries sorted by slug.
func (s *QuizService) ListQuizzes(ctx context.Context) ([]domain.QuizSummary, error) {
	quizzes, err := s.quizzes.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.QuizSummary, 0, len(quizzes))
	for _, q := range quizzes {
		out = append(out, q.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

// GetQuiz returns a preview copy of the quiz with its questions shuffled.
func (s *QuizService) GetQuiz(ctx context.Context, slug string) (domain.Quiz, error) {
	quiz, err := s.quizzes.Get(ctx, slug)
	if err != nil {
		return domain.Quiz{}, err
	}
	preview := quiz.Clone()
	preview.Shuffle(s.shuffle)
	return preview, nil
}

// ExportQuiz renders the stored quiz as markup in authoring order.
func (s *QuizService) ExportQuiz(ctx context.Context, slug string) (string, error) {
	quiz, err := s.quizzes.Get(ctx, slug)
	if err != nil {
		return "", err
	}
	data, err := markup.Format(quiz)
	if err != nil {
		return "", fmt.Errorf("export quiz %q: %w", slug, err)
	}
	return data, nil
}

// DeleteQuizzes removes every stored quiz and reports how many were dropped.
func (s *QuizService) DeleteQuizzes(ctx context.Context) (int, error) {
	n, err := s.quizzes.DeleteAll(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.Info("deleted quizzes", zap.Int("count", n))
	return n, nil
}

// StartSession creates an in-progress attempt on a shuffled copy of the quiz.
func (s *QuizService) StartSession(ctx context.Context, slug string) (domain.Session, error) {
	quiz, err := s.quizzes.Get(ctx, slug)
	if err != nil {
		return domain.Session{}, err
	}
	live := quiz.Clone()
	live.Shuffle(s.shuffle)

	session := domain.Session{
		ID:          SessionID(slug, s.newID()),
		Slug:        slug,
		Quiz:        live,
		Status:      domain.SessionInProgress,
		StartedAt:   s.now(),
		Answers:     map[int][]domain.Choice{},
		Evaluations: map[int]domain.ResponseEvaluation{},
	}
	if err := s.sessions.Put(ctx, session); err != nil {
		return domain.Session{}, fmt.Errorf("store session: %w", err)
	}
	return session, nil
}

// GetSession returns the latest state of a session.
func (s *QuizService) GetSession(ctx context.Context, id string) (domain.Session, error) {
	return s.sessions.Get(ctx, id)
}

// ListSessions returns the sessions started on slug, oldest first.
func (s *QuizService) ListSessions(ctx context.Context, slug string) ([]domain.Session, error) {
	sessions, err := s.sessions.List(ctx, slug+sessionIDSeparator)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.Before(sessions[j].StartedAt)
	})
	return sessions, nil
}

// LatestSession returns the most recently started session on slug.
func (s *QuizService) LatestSession(ctx context.Context, slug string) (domain.Session, error) {
	sessions, err := s.ListSessions(ctx, slug)
	if err != nil {
		return domain.Session{}, err
	}
	if len(sessions) == 0 {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return sessions[len(sessions)-1], nil
}

// Submit evaluates answers (question index to selected choice texts) and
// completes the session.
func (s *QuizService) Submit(ctx context.Context, id string, answers map[int][]string) (domain.Session, error) {
	return s.SubmitWithProgress(ctx, id, answers, nil)
}

// SubmitWithProgress is Submit with observe called as each question finishes.
// Submits on the same session are serialized; only the first one completes it.
func (s *QuizService) SubmitWithProgress(ctx context.Context, id string, answers map[int][]string, observe ResultObserver) (domain.Session, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		s.observeSubmission(err)
		return domain.Session{}, err
	}
	if session.Completed() {
		s.observeSubmission(domain.ErrAlreadySubmitted)
		return domain.Session{}, domain.ErrAlreadySubmitted
	}

	selected, err := resolveAnswers(session.Quiz, answers)
	if err != nil {
		s.observeSubmission(err)
		return domain.Session{}, err
	}

	quizCtx := s.quizContext(ctx, session.Quiz)
	outcome := s.orchestrator.Evaluate(ctx, session.Quiz, selected, session.Profile, quizCtx, observe)

	submittedAt := s.now()
	score := outcome.Score
	session.Status, session.SubmittedAt, session.Answers, session.Evaluations, session.Score, session.Profile =
		domain.SessionCompleted, &submittedAt, selected, outcome.Evaluations, &score, outcome.Profile

	if err := s.sessions.Put(ctx, session); err != nil {
		s.observeSubmission(err)
		return domain.Session{}, fmt.Errorf("store session: %w", err)
	}
	s.observeSubmission(nil)
	s.logger.Info("session submitted",
		zap.String("session_id", id),
		zap.String("slug", session.Slug),
		zap.Int("score", score),
		zap.Int("total", outcome.Total),
		zap.Int("fallbacks", outcome.Failed),
	)
	return session, nil
}

// GenerateQuestions asks the generator for count new questions in the style
// of the stored quiz, appends them and saves the quiz again.
func (s *QuizService) GenerateQuestions(ctx context.Context, slug string, count int) ([]domain.Question, error) {
	if s.generator == nil {
		return nil, domain.ErrGeneratorUnavailable
	}
	if count <= 0 {
		count = 1
	}
	quiz, err := s.quizzes.Get(ctx, slug)
	if err != nil {
		return nil, err
	}
	generated, err := s.generator.GenerateQuestions(ctx, quiz.Topic, quiz.Questions, count)
	if err != nil {
		return nil, fmt.Errorf("generate questions: %w", err)
	}
	quiz.Questions = append(quiz.Questions, generated...)
	if err := s.quizzes.Save(ctx, quiz); err != nil {
		return nil, fmt.Errorf("save quiz %q: %w", slug, err)
	}
	s.invalidateContext(quiz.Slug())
	return generated, nil
}

func (s *QuizService) quizContext(ctx context.Context, quiz domain.Quiz) domain.QuizContext {
	quizCtx, err := s.contexts.QuizContext(ctx, quiz)
	if err != nil {
		s.logger.Warn("quiz context unavailable, using defaults",
			zap.String("topic", quiz.Topic),
			zap.Error(err),
		)
		return domain.DefaultQuizContext()
	}
	return quizCtx
}

// invalidateContext drops cached style context for a quiz whose questions changed.
func (s *QuizService) invalidateContext(slug string) {
	if c, ok := s.contexts.(interface{ Invalidate(slug string) }); ok {
		c.Invalidate(slug)
	}
}

func (s *QuizService) observeSubmission(err error) {
	switch {
	case err == nil:
		s.metrics.ObserveSubmission(submitOK)
	case errors.Is(err, domain.ErrAlreadySubmitted),
		errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrQuestionOutOfRange):
		s.metrics.ObserveSubmission(submitRejected)
	default:
		s.metrics.ObserveSubmission(submitError)
	}
}

// resolveAnswers maps submitted texts onto the session's choices. Indices
// whose selection resolves to nothing are not treated as answered.
func resolveAnswers(quiz domain.Quiz, answers map[int][]string) (map[int][]domain.Choice, error) {
	selected := make(map[int][]domain.Choice, len(answers))
	for idx, texts := range answers {
		if idx < 0 || idx >= len(quiz.Questions) {
			return nil, fmt.Errorf("%w: %d", domain.ErrQuestionOutOfRange, idx)
		}
		choices := domain.SelectChoices(quiz.Questions[idx], texts)
		if len(choices) == 0 {
			continue
		}
		selected[idx] = choices
	}
	return selected, nil
}
