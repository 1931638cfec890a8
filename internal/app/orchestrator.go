package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"quizdown-service/internal/domain"
	"quizdown-service/internal/metrics"
)

// Outcome is the aggregated result of evaluating one submission.
type Outcome struct {
	Evaluations map[int]domain.ResponseEvaluation
	Score       int
	Total       int
	Failed      int
	Profile     domain.LearnerProfile
}

// ResultObserver is called once per answered question as its evaluation
// finishes. Calls may come from several goroutines at once.
type ResultObserver func(index int, eval domain.ResponseEvaluation)

// Orchestrator fans out one evaluator call per answered question on a
// bounded worker pool and folds the results into one Outcome.
type Orchestrator struct {
	evaluator Evaluator
	workers   int
	timeout   time.Duration
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewOrchestrator returns an orchestrator running at most workers evaluator
// calls at once, each bounded by timeout (0 disables the bound).
func NewOrchestrator(evaluator Evaluator, workers int, timeout time.Duration, logger *zap.Logger, m *metrics.Metrics) *Orchestrator {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		evaluator: evaluator,
		workers:   workers,
		timeout:   timeout,
		logger:    logger,
		metrics:   m,
	}
}

type taskResult struct {
	index int
	eval  domain.ResponseEvaluation
	ok    bool
}

// Evaluate runs every answered question through the evaluator. A failing or
// slow task is replaced by domain.FallbackEvaluation and never affects the
// others. Once started the batch is not cancelled by ctx.
//
// Score is computed locally. The returned profile merges each successful
// task's growth over profile in ascending question order.
func (o *Orchestrator) Evaluate(
	ctx context.Context,
	quiz domain.Quiz,
	answers map[int][]domain.Choice,
	profile domain.LearnerProfile,
	quizCtx domain.QuizContext,
	observe ResultObserver,
) Outcome {
	ctx = context.WithoutCancel(ctx)

	indices := make([]int, 0, len(answers))
	for idx := range answers {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	results := make([]taskResult, len(indices))
	var g errgroup.Group
	g.SetLimit(o.workers)
	for i, idx := range indices {
		g.Go(func() error {
			results[i] = o.runTask(ctx, quiz, idx, answers[idx], profile.Clone(), quizCtx)
			if observe != nil {
				observe(idx, results[i].eval)
			}
			return nil
		})
	}
	_ = g.Wait()

	outcome := Outcome{
		Evaluations: make(map[int]domain.ResponseEvaluation, len(results)),
		Total:       len(quiz.Questions),
	}
	updates := make([]domain.LearnerProfile, 0, len(results))
	for _, r := range results {
		outcome.Evaluations[r.index] = r.eval
		if r.eval.Correct {
			outcome.Score++
		}
		if !r.ok {
			outcome.Failed++
			continue
		}
		updates = append(updates, r.eval.Profile)
	}
	outcome.Profile = domain.MergeProfiles(profile, updates...)
	return outcome
}

func (o *Orchestrator) runTask(
	ctx context.Context,
	quiz domain.Quiz,
	idx int,
	selected []domain.Choice,
	snapshot domain.LearnerProfile,
	quizCtx domain.QuizContext,
) taskResult {
	start := time.Now()
	question := quiz.Questions[idx]
	correct := question.CorrectChoices()

	req := EvaluationRequest{
		Question:       question.Text,
		Choices:        domain.ChoiceTexts(question.Choices),
		CorrectAnswers: domain.ChoiceTexts(correct),
		Selected:       domain.ChoiceTexts(selected),
		Correct:        domain.IsCorrect(question, selected),
		Topic:          quiz.Topic,
		Profile:        snapshot.Clone(),
		Context:        quizCtx,
	}

	resp, err := o.call(ctx, req)
	if err != nil {
		o.logger.Warn("evaluation failed, using fallback",
			zap.String("topic", quiz.Topic),
			zap.Int("question", idx),
			zap.Error(err),
		)
		o.metrics.ObserveEvaluation(metrics.OutcomeFallback, time.Since(start))
		return taskResult{index: idx, eval: domain.FallbackEvaluation(question, selected, snapshot)}
	}
	o.metrics.ObserveEvaluation(metrics.OutcomeOK, time.Since(start))

	updated := resp.Profile
	if updated.Topics == nil {
		updated = snapshot
	}
	return taskResult{
		index: idx,
		ok:    true,
		eval: domain.ResponseEvaluation{
			Correct:        req.Correct,
			YourAnswer:     req.Selected,
			CorrectAnswers: req.CorrectAnswers,
			Feedback:       resp.Feedback,
			Error:          resp.Error,
			Suggestions:    resp.Suggestions,
			Profile:        updated,
		},
	}
}

type callResult struct {
	resp EvaluationResponse
	err  error
}

// call isolates one evaluator invocation: panics become errors and the
// per-task timeout holds even if the evaluator ignores ctx.
func (o *Orchestrator) call(ctx context.Context, req EvaluationRequest) (EvaluationResponse, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	done := make(chan callResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- callResult{err: fmt.Errorf("evaluator panic: %v", r)}
			}
		}()
		resp, err := o.evaluator.Evaluate(ctx, req)
		done <- callResult{resp: resp, err: err}
	}()

	select {
	case r := <-done:
		return r.resp, r.err
	case <-ctx.Done():
		return EvaluationResponse{}, fmt.Errorf("evaluate question: %w", ctx.Err())
	}
}
