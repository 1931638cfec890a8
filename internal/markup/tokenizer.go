package markup

import (
	"strings"

	"quizdown-service/internal/domain"
)

// ParseQuestions tokenizes the body of a tag pair. Lines starting with '-'
// are incorrect choices and '>' correct ones; any other non-blank line starts
// a question. Blank lines carry no meaning. Questions without choices are
// dropped.
func ParseQuestions(block string, shuffle domain.ShuffleFunc) []domain.Question {
	var (
		questions []domain.Question
		text      string
		open      bool
		choices   []domain.Choice
	)

	flush := func() {
		if open && len(choices) > 0 {
			questions = append(questions, domain.NewQuestion(text, choices, shuffle))
		}
		text, open, choices = "", false, nil
	}

	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if line[0] == '-' || line[0] == '>' {
			if !open {
				continue
			}
			choices = append(choices, domain.Choice{
				Text:      strings.TrimSpace(line[1:]),
				IsCorrect: line[0] == '>',
			})
			continue
		}

		if open && len(choices) > 0 {
			flush()
		}
		text, open = line, true
	}
	flush()

	return questions
}
