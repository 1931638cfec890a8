package evaluator

import (
	"context"
	"fmt"
	"strings"

	"quizdown-service/internal/domain"
)

const contextSystemPrompt = `You analyse quizzes. Describe the quiz with ONLY a JSON object:
{"style": "academic | conversational | practical | concise",
 "complexity": "beginner | intermediate | advanced | expert",
 "language": "ISO 639-1 code",
 "domain": "subject domain",
 "covered_concepts": ["3-8 concepts in the quiz language"],
 "target_audience": "high_school | undergraduate | graduate | professional | general"}`

// contextSamples bounds how many questions are shown to the model.
const contextSamples = 5

type contextPayload struct {
	Style           string   `json:"style"`
	Complexity      string   `json:"complexity"`
	Language        string   `json:"language"`
	Domain          string   `json:"domain"`
	CoveredConcepts []string `json:"covered_concepts"`
	TargetAudience  string   `json:"target_audience"`
}

// QuizContext describes the quiz's style. Fields the model leaves blank keep
// their defaults.
func (c *Client) QuizContext(ctx context.Context, quiz domain.Quiz) (domain.QuizContext, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\nQuestions: %d\nSamples:\n", quiz.Topic, len(quiz.Questions))
	for i, q := range quiz.Questions {
		if i == contextSamples {
			break
		}
		fmt.Fprintf(&b, "- %s | %s\n", q.Text, strings.Join(domain.ChoiceTexts(q.OriginalChoices), ", "))
	}

	var payload contextPayload
	if err := c.completeJSON(ctx, contextSystemPrompt, b.String(), 0.2, &payload); err != nil {
		return domain.QuizContext{}, fmt.Errorf("extract quiz context: %w", err)
	}

	out := domain.DefaultQuizContext()
	setIfNotEmpty(&out.Style, payload.Style)
	setIfNotEmpty(&out.Complexity, payload.Complexity)
	setIfNotEmpty(&out.Language, payload.Language)
	setIfNotEmpty(&out.Domain, payload.Domain)
	setIfNotEmpty(&out.TargetAudience, payload.TargetAudience)
	if len(payload.CoveredConcepts) > 0 {
		out.CoveredConcepts = payload.CoveredConcepts
	}
	return out, nil
}

func setIfNotEmpty(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}
