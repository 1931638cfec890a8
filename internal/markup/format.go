package markup

import (
	"errors"
	"fmt"
	"strings"

	"quizdown-service/internal/domain"
)

// ErrUnrepresentable is returned for quizzes whose text would not survive a
// Format/Parse round trip.
var ErrUnrepresentable = errors.New("quiz cannot be written as markup")

// Format renders quiz back to markup using the authoring choice order.
// Time limits that are not whole minutes are rounded up.
func Format(quiz domain.Quiz) (string, error) {
	if err := Validate(quiz); err != nil {
		return "", err
	}

	var b strings.Builder
	if quiz.TimeLimit > 0 {
		fmt.Fprintf(&b, "<%s:%d>\n", quiz.Topic, minutesCeil(quiz.TimeLimit))
	} else {
		fmt.Fprintf(&b, "<%s>\n", quiz.Topic)
	}
	b.WriteString("\n")
	for _, q := range quiz.Questions {
		b.WriteString(q.Text)
		b.WriteString("\n")
		for _, c := range q.OriginalChoices {
			prefix := "-"
			if c.IsCorrect {
				prefix = ">"
			}
			fmt.Fprintf(&b, "%s %s\n", prefix, c.Text)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "</%s>\n", quiz.Topic)
	return b.String(), nil
}

// FormatAll renders several quizzes into one document.
func FormatAll(quizzes []domain.Quiz) (string, error) {
	parts := make([]string, len(quizzes))
	for i, q := range quizzes {
		out, err := Format(q)
		if err != nil {
			return "", err
		}
		parts[i] = out
	}
	return strings.Join(parts, "\n"), nil
}

// Validate reports whether quiz can be written as markup and parsed back
// unchanged.
func Validate(quiz domain.Quiz) error {
	topic := quiz.Topic
	if topic == "" || topic != strings.TrimSpace(topic) || strings.ContainsAny(topic, "<>:\r\n") || topic[0] == '/' {
		return fmt.Errorf("%w: invalid topic %q", ErrUnrepresentable, topic)
	}
	if quiz.TimeLimit < 0 || minutesCeil(quiz.TimeLimit) > maxMinutes {
		return fmt.Errorf("%w: invalid time limit %d", ErrUnrepresentable, quiz.TimeLimit)
	}
	if len(quiz.Questions) == 0 {
		return fmt.Errorf("%w: quiz %q has no questions", ErrUnrepresentable, topic)
	}
	for _, q := range quiz.Questions {
		if err := ValidateQuestion(topic, q); err != nil {
			return err
		}
	}
	return nil
}

// ValidateQuestion checks one question of a quiz on topic. Question text must
// be a single trimmed line that cannot be read as a choice; choice texts must
// be single trimmed lines. No text may close the quiz early.
func ValidateQuestion(topic string, q domain.Question) error {
	text := q.Text
	if !singleLine(text) || text == "" || text[0] == '-' || text[0] == '>' {
		return fmt.Errorf("%w: question text %q", ErrUnrepresentable, text)
	}
	if len(q.OriginalChoices) == 0 {
		return fmt.Errorf("%w: question %q has no choices", ErrUnrepresentable, text)
	}
	if closesQuiz(text, topic) {
		return fmt.Errorf("%w: question %q closes the quiz", ErrUnrepresentable, text)
	}
	for _, c := range q.OriginalChoices {
		if !singleLine(c.Text) || closesQuiz(c.Text, topic) {
			return fmt.Errorf("%w: choice %q of question %q", ErrUnrepresentable, c.Text, text)
		}
	}
	return nil
}

func minutesCeil(seconds int) int {
	minutes := seconds / 60
	if seconds%60 != 0 {
		minutes++
	}
	return minutes
}

func singleLine(s string) bool {
	return s == strings.TrimSpace(s) && !strings.ContainsAny(s, "\r\n")
}

// closesQuiz reports whether s holds a closing tag for topic. Untimed
// matching is the stricter check: it also catches `</Topic:5>`.
func closesQuiz(s, topic string) bool {
	_, ok := findClosingTag(s, 0, topic, false)
	return ok
}
