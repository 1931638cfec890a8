package evaluator

import (
	"context"
	"strings"

	"quizdown-service/internal/app"
	"quizdown-service/internal/domain"
)

// Heuristic is an offline app.Evaluator used when no API key is configured.
// It classifies by overlap between the selected and correct choices.
type Heuristic struct{}

func (Heuristic) Evaluate(_ context.Context, req app.EvaluationRequest) (app.EvaluationResponse, error) {
	if req.Correct {
		return exactMatchResponse(req), nil
	}

	correct := make(map[string]bool, len(req.CorrectAnswers))
	for _, c := range req.CorrectAnswers {
		correct[c] = true
	}
	hits := 0
	for _, s := range req.Selected {
		if correct[s] {
			hits++
		}
	}

	eval := domain.ErrorEvaluation{
		Kind:       domain.KindConceptualMisunderstanding,
		Confidence: 0.5,
		Reasoning:  "None of the selected choices are correct.",
	}
	if hits > 0 {
		eval = domain.ErrorEvaluation{
			Kind:       domain.KindPartialUnderstanding,
			Confidence: 0.6,
			Reasoning:  "Some selected choices are correct but the selection is incomplete or includes wrong choices.",
		}
	}

	profile := req.Profile.Clone()
	profile.Record(req.Topic, eval.Kind)
	return app.EvaluationResponse{
		Error: eval,
		Feedback: domain.Feedback{
			Concept:     req.Topic,
			Explanation: "The correct answer is: " + strings.Join(req.CorrectAnswers, ", ") + ".",
			KeyPoints:   append([]string(nil), req.CorrectAnswers...),
		},
		Profile: profile,
	}, nil
}
