package markup

import (
	"fmt"
	"io"

	"quizdown-service/internal/domain"
)

// Parser turns quiz markup into quizzes. It never fails on malformed input:
// unmatched or invalid tags are skipped and the worst case is zero quizzes.
type Parser struct {
	shuffle domain.ShuffleFunc
}

// NewParser returns a parser that shuffles choice order with shuffle.
// A nil shuffle uses domain.DefaultShuffle.
func NewParser(shuffle domain.ShuffleFunc) *Parser {
	if shuffle == nil {
		shuffle = domain.DefaultShuffle
	}
	return &Parser{shuffle: shuffle}
}

// Parse extracts every well-formed quiz in content. sourceRef is recorded on
// each quiz.
func (p *Parser) Parse(content, sourceRef string) []domain.Quiz {
	var quizzes []domain.Quiz
	pos := 0
	for {
		open, ok := findOpeningTag(content, pos)
		if !ok {
			return quizzes
		}
		// On any failure scanning resumes right after the opening tag.
		pos = open.end

		h, ok := parseHeader(open.header)
		if !ok {
			continue
		}
		closing, ok := findClosingTag(content, open.end, h.topic, h.timed)
		if !ok {
			continue
		}

		questions := ParseQuestions(content[open.end:closing.start], p.shuffle)
		if len(questions) > 0 {
			quizzes = append(quizzes, domain.Quiz{
				Topic:     h.topic,
				Questions: questions,
				TimeLimit: h.minutes * 60,
				SourceRef: sourceRef,
			})
		}
		pos = closing.end
	}
}

// ParseReader reads r fully and parses it.
func (p *Parser) ParseReader(r io.Reader, sourceRef string) ([]domain.Quiz, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read quiz document: %w", err)
	}
	return p.Parse(string(data), sourceRef), nil
}
