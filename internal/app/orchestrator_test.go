package app_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"quizdown-service/internal/app"
	"quizdown-service/internal/domain"
)

// scriptedEvaluator records the answer's kind against the request topic and
// can be told to fail, panic or hang for particular questions.
type scriptedEvaluator struct {
	fail   map[string]bool
	panics map[string]bool
	hang   map[string]bool
	topic  func(req app.EvaluationRequest) string

	inFlight atomic.Int32
	peak     atomic.Int32
	calls    atomic.Int32
}

func (e *scriptedEvaluator) Evaluate(ctx context.Context, req app.EvaluationRequest) (app.EvaluationResponse, error) {
	e.calls.Add(1)
	n := e.inFlight.Add(1)
	defer e.inFlight.Add(-1)
	for {
		peak := e.peak.Load()
		if n <= peak || e.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	switch {
	case e.fail[req.Question]:
		return app.EvaluationResponse{}, errors.New("evaluator unavailable")
	case e.panics[req.Question]:
		panic("malformed payload")
	case e.hang[req.Question]:
		time.Sleep(time.Second)
	}

	kind := domain.KindCorrect
	if !req.Correct {
		kind = domain.KindApplicationError
	}
	topic := req.Topic
	if e.topic != nil {
		topic = e.topic(req)
	}
	profile := req.Profile.Clone()
	profile.Record(topic, kind)
	return app.EvaluationResponse{
		Error:    domain.ErrorEvaluation{Kind: kind, Confidence: 0.9, Reasoning: "scripted"},
		Feedback: domain.Feedback{Concept: req.Question, Explanation: "scripted"},
		Profile:  profile,
	}, nil
}

func threeQuestionQuiz() domain.Quiz {
	q := func(text, right, wrong string) domain.Question {
		return domain.NewQuestion(text, []domain.Choice{{Text: wrong}, {Text: right, IsCorrect: true}}, noShuffle)
	}
	return domain.Quiz{
		Topic: "Mixed",
		Questions: []domain.Question{
			q("q0", "a", "b"),
			q("q1", "c", "d"),
			q("q2", "e", "f"),
		},
	}
}

func noShuffle(int, func(i, j int)) {}

func correctAnswers(quiz domain.Quiz) map[int][]domain.Choice {
	answers := map[int][]domain.Choice{}
	for i, q := range quiz.Questions {
		answers[i] = q.CorrectChoices()
	}
	return answers
}

func TestOrchestratorIsolatesFailingTask(t *testing.T) {
	quiz := threeQuestionQuiz()
	var base domain.LearnerProfile
	base.Record("Mixed", domain.KindCorrect)

	evaluator := &scriptedEvaluator{fail: map[string]bool{"q1": true}}
	orch := app.NewOrchestrator(evaluator, 4, time.Second, nil, nil)

	var mu sync.Mutex
	observed := map[int]bool{}
	outcome := orch.Evaluate(context.Background(), quiz, correctAnswers(quiz), base, domain.DefaultQuizContext(),
		func(idx int, _ domain.ResponseEvaluation) {
			mu.Lock()
			observed[idx] = true
			mu.Unlock()
		})

	if len(outcome.Evaluations) != 3 || len(observed) != 3 {
		t.Fatalf("expected 3 evaluations and 3 observations, got %d/%d", len(outcome.Evaluations), len(observed))
	}
	failed := outcome.Evaluations[1]
	if !failed.Fallback || failed.Feedback.Concept != domain.FallbackConcept {
		t.Fatalf("expected fallback for q1, got %+v", failed)
	}
	if failed.Error.Kind != domain.KindConceptualMisunderstanding || failed.Error.Confidence != 0 {
		t.Fatalf("unexpected fallback classification %+v", failed.Error)
	}
	if got, _ := failed.Profile.Topic("Mixed"); got.Total() != 1 {
		t.Fatalf("fallback must carry the pre-submission profile, got %+v", failed.Profile)
	}
	if outcome.Failed != 1 {
		t.Fatalf("expected 1 failed task, got %d", outcome.Failed)
	}
	// Scoring is local: the failed evaluation still counts a correct answer.
	if outcome.Score != 3 || outcome.Total != 3 {
		t.Fatalf("expected 3/3, got %d/%d", outcome.Score, outcome.Total)
	}
	mixed, _ := outcome.Profile.Topic("Mixed")
	if mixed.Correct() != 3 {
		t.Fatalf("expected base + two successful updates, got %+v", mixed)
	}
}

func TestOrchestratorRecoversPanicsAndTimeouts(t *testing.T) {
	quiz := threeQuestionQuiz()
	evaluator := &scriptedEvaluator{
		panics: map[string]bool{"q0": true},
		hang:   map[string]bool{"q2": true},
	}
	orch := app.NewOrchestrator(evaluator, 3, 50*time.Millisecond, nil, nil)

	start := time.Now()
	outcome := orch.Evaluate(context.Background(), quiz, correctAnswers(quiz), domain.LearnerProfile{}, domain.DefaultQuizContext(), nil)
	if time.Since(start) > 500*time.Millisecond {
		t.Fatalf("per-task timeout not enforced")
	}
	if !outcome.Evaluations[0].Fallback || !outcome.Evaluations[2].Fallback {
		t.Fatalf("expected fallbacks for panic and timeout, got %+v", outcome.Evaluations)
	}
	if outcome.Evaluations[1].Fallback {
		t.Fatalf("healthy task must not fall back")
	}
	if outcome.Failed != 2 {
		t.Fatalf("expected 2 failures, got %d", outcome.Failed)
	}
}

func TestOrchestratorBoundsConcurrency(t *testing.T) {
	quiz := domain.Quiz{Topic: "Load"}
	for i := 0; i < 12; i++ {
		quiz.Questions = append(quiz.Questions, domain.NewQuestion("q", []domain.Choice{{Text: "x", IsCorrect: true}}, noShuffle))
	}
	evaluator := &scriptedEvaluator{}
	orch := app.NewOrchestrator(evaluator, 2, time.Second, nil, nil)

	outcome := orch.Evaluate(context.Background(), quiz, correctAnswers(quiz), domain.LearnerProfile{}, domain.DefaultQuizContext(), nil)
	if len(outcome.Evaluations) != 12 || evaluator.calls.Load() != 12 {
		t.Fatalf("expected 12 evaluations, got %d", len(outcome.Evaluations))
	}
	if evaluator.peak.Load() > 2 {
		t.Fatalf("expected at most 2 concurrent calls, saw %d", evaluator.peak.Load())
	}
}

// Tasks that update different topics concurrently must all survive in the
// committed profile, merged in question order.
func TestOrchestratorMergesProfilesPerTopic(t *testing.T) {
	quiz := threeQuestionQuiz()
	evaluator := &scriptedEvaluator{
		topic: func(req app.EvaluationRequest) string { return "topic-" + req.Question },
	}
	orch := app.NewOrchestrator(evaluator, 3, time.Second, nil, nil)

	answers := correctAnswers(quiz)
	answers[2] = []domain.Choice{{Text: "f"}}
	outcome := orch.Evaluate(context.Background(), quiz, answers, domain.LearnerProfile{}, domain.DefaultQuizContext(), nil)

	if len(outcome.Profile.Topics) != 3 {
		t.Fatalf("expected 3 topics, got %+v", outcome.Profile.Topics)
	}
	for i, want := range []string{"topic-q0", "topic-q1", "topic-q2"} {
		if outcome.Profile.Topics[i].Topic != want {
			t.Fatalf("expected topics in question order, got %+v", outcome.Profile.Topics)
		}
	}
	last, _ := outcome.Profile.Topic("topic-q2")
	if last.ErrorCounts[domain.KindApplicationError] != 1 {
		t.Fatalf("expected application error on q2, got %+v", last)
	}
	if outcome.Score != 2 {
		t.Fatalf("expected score 2, got %d", outcome.Score)
	}
}

func TestOrchestratorIgnoresCancelledContext(t *testing.T) {
	quiz := threeQuestionQuiz()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	orch := app.NewOrchestrator(&scriptedEvaluator{}, 2, time.Second, nil, nil)
	outcome := orch.Evaluate(ctx, quiz, correctAnswers(quiz), domain.LearnerProfile{}, domain.DefaultQuizContext(), nil)
	if outcome.Failed != 0 {
		t.Fatalf("batch must run to completion once started, got %d failures", outcome.Failed)
	}
}
