package evaluator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"quizdown-service/internal/app"
	"quizdown-service/internal/domain"
)

const evaluateSystemPrompt = `You are an educational assessment expert. Classify the student's error and write short, constructive feedback. Respond with ONLY a JSON object:
{
  "error_type": "conceptual_misunderstanding | partial_understanding | terminology_confusion | application_error | careless_mistake",
  "confidence": 0.0,
  "reasoning": "one or two sentences",
  "feedback": {"concept": "", "explanation": "", "key_points": [""], "hints": [""]},
  "suggestions": [{"title": "", "explanation": "", "resources": [""]}]
}
Write in the language of the quiz.`

type evaluationPayload struct {
	ErrorType  string  `json:"error_type"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
	Feedback   struct {
		Concept     string   `json:"concept"`
		Explanation string   `json:"explanation"`
		KeyPoints   []string `json:"key_points"`
		Hints       []string `json:"hints"`
	} `json:"feedback"`
	Suggestions []struct {
		Title       string   `json:"title"`
		Explanation string   `json:"explanation"`
		Resources   []string `json:"resources"`
	} `json:"suggestions"`
}

// Evaluate classifies one answer and records the verdict in a copy of the
// learner profile. Answers already scored correct are answered locally.
func (c *Client) Evaluate(ctx context.Context, req app.EvaluationRequest) (app.EvaluationResponse, error) {
	if req.Correct {
		return exactMatchResponse(req), nil
	}

	var payload evaluationPayload
	if err := c.completeJSON(ctx, evaluateSystemPrompt, evaluationPrompt(req), 0.3, &payload); err != nil {
		return app.EvaluationResponse{}, fmt.Errorf("evaluate answer: %w", err)
	}
	if payload.ErrorType == "" || payload.Feedback.Explanation == "" {
		return app.EvaluationResponse{}, errors.New("evaluate answer: incomplete evaluation payload")
	}

	kind := domain.ParseErrorKind(payload.ErrorType)
	if kind == domain.KindCorrect {
		// The selection is known not to match; the model cannot overrule that.
		kind = domain.KindCarelessMistake
	}
	resp := app.EvaluationResponse{
		Error: domain.ErrorEvaluation{
			Kind:       kind,
			Confidence: clamp01(payload.Confidence),
			Reasoning:  payload.Reasoning,
		},
		Feedback: domain.Feedback{
			Concept:     payload.Feedback.Concept,
			Explanation: payload.Feedback.Explanation,
			KeyPoints:   payload.Feedback.KeyPoints,
			Hints:       payload.Feedback.Hints,
		},
		Profile: req.Profile.Clone(),
	}
	for _, s := range payload.Suggestions {
		resp.Suggestions = append(resp.Suggestions, domain.Suggestion{
			Title:       s.Title,
			Explanation: s.Explanation,
			Resources:   s.Resources,
		})
	}
	resp.Profile.Record(req.Topic, kind)
	return resp, nil
}

func evaluationPrompt(req app.EvaluationRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\n", req.Topic)
	fmt.Fprintf(&b, "Quiz style: %s, complexity: %s, language: %s, audience: %s\n",
		req.Context.Style, req.Context.Complexity, req.Context.Language, req.Context.TargetAudience)
	fmt.Fprintf(&b, "Question: %s\n", req.Question)
	fmt.Fprintf(&b, "Choices: %s\n", strings.Join(req.Choices, "; "))
	fmt.Fprintf(&b, "Correct answer(s): %s\n", strings.Join(req.CorrectAnswers, "; "))
	fmt.Fprintf(&b, "Student answer(s): %s\n", strings.Join(req.Selected, "; "))
	if struggling := req.Profile.StrugglingTopics(); len(struggling) > 0 {
		topics := make([]string, 0, len(struggling))
		for topic, acc := range struggling {
			topics = append(topics, fmt.Sprintf("%s (%.0f%%)", topic, acc*100))
		}
		fmt.Fprintf(&b, "Struggling topics: %s\n", strings.Join(topics, ", "))
	}
	return b.String()
}

func exactMatchResponse(req app.EvaluationRequest) app.EvaluationResponse {
	profile := req.Profile.Clone()
	profile.Record(req.Topic, domain.KindCorrect)
	return app.EvaluationResponse{
		Error: domain.ErrorEvaluation{
			Kind:       domain.KindCorrect,
			Confidence: 1,
			Reasoning:  "Exact match",
		},
		Feedback: domain.Feedback{
			Concept:     req.Topic,
			Explanation: "Your answer matches the correct choices.",
			KeyPoints:   append([]string(nil), req.CorrectAnswers...),
		},
		Profile: profile,
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
