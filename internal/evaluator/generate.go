package evaluator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"quizdown-service/internal/domain"
	"quizdown-service/internal/markup"
)

const generateSystemPrompt = `You write multiple-choice quiz questions in the style, language and difficulty of the samples. Respond with ONLY a JSON object:
{"questions": [{"text": "Question?", "choices": [{"text": "Option", "is_correct": true}]}]}
Rules:
- 2 to 5 choices per question, at least one correct
- Do not repeat the sample questions`

type generatedPayload struct {
	Questions []struct {
		Text    string `json:"text"`
		Choices []struct {
			Text      string `json:"text"`
			IsCorrect bool   `json:"is_correct"`
		} `json:"choices"`
	} `json:"questions"`
}

// GenerateQuestions asks the model for count new questions on topic, using
// samples as style references. Malformed questions in the reply are dropped.
func (c *Client) GenerateQuestions(ctx context.Context, topic string, samples []domain.Question, count int) ([]domain.Question, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\nGenerate %d new questions.\nSamples:\n", topic, count)
	for i, q := range samples {
		if i == contextSamples {
			break
		}
		fmt.Fprintf(&b, "%s\n", q.Text)
		for _, ch := range q.OriginalChoices {
			prefix := "-"
			if ch.IsCorrect {
				prefix = ">"
			}
			fmt.Fprintf(&b, "%s %s\n", prefix, ch.Text)
		}
	}

	var payload generatedPayload
	if err := c.completeJSON(ctx, generateSystemPrompt, b.String(), 0.7, &payload); err != nil {
		return nil, fmt.Errorf("generate questions: %w", err)
	}

	var out []domain.Question
	for _, q := range payload.Questions {
		text := collapseSpace(q.Text)
		if text == "" {
			continue
		}
		var choices []domain.Choice
		hasCorrect := false
		for _, ch := range q.Choices {
			if t := collapseSpace(ch.Text); t != "" {
				choices = append(choices, domain.Choice{Text: t, IsCorrect: ch.IsCorrect})
				hasCorrect = hasCorrect || ch.IsCorrect
			}
		}
		if len(choices) < 2 || !hasCorrect {
			c.logger.Sugar().Debugw("dropping generated question", "text", text, "choices", len(choices))
			continue
		}
		question := domain.NewQuestion(text, choices, c.shuffle)
		// Stored quizzes are re-read from markup, so anything Format would
		// refuse is dropped here.
		if err := markup.ValidateQuestion(topic, question); err != nil {
			c.logger.Sugar().Debugw("dropping generated question", "text", text, "error", err)
			continue
		}
		out = append(out, question)
		if len(out) == count {
			break
		}
	}
	if len(out) == 0 {
		return nil, errors.New("generate questions: no usable questions in reply")
	}
	return out, nil
}

// collapseSpace joins the words of s with single spaces, removing newlines.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
