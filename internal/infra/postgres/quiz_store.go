package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quizdown-service/internal/domain"
	"quizdown-service/internal/markup"
)

// QuizStore keeps each quiz as its markup in the quizzes table and parses it
// back on load.
type QuizStore struct {
	pool   *pgxpool.Pool
	parser *markup.Parser
}

func NewQuizStore(pool *pgxpool.Pool, parser *markup.Parser) *QuizStore {
	if parser == nil {
		parser = markup.NewParser(nil)
	}
	return &QuizStore{pool: pool, parser: parser}
}

func (s *QuizStore) Save(ctx context.Context, quiz domain.Quiz) error {
	data, err := markup.Format(quiz)
	if err != nil {
		return fmt.Errorf("save quiz %q: %w", quiz.Slug(), err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO quizzes (slug, topic, time_limit, source_ref, markup, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (slug) DO UPDATE SET
			topic = EXCLUDED.topic,
			time_limit = EXCLUDED.time_limit,
			source_ref = EXCLUDED.source_ref,
			markup = EXCLUDED.markup,
			updated_at = now()`,
		quiz.Slug(), quiz.Topic, quiz.TimeLimit, quiz.SourceRef, data,
	)
	if err != nil {
		return fmt.Errorf("save quiz: %w", err)
	}
	return nil
}

func (s *QuizStore) Get(ctx context.Context, slug string) (domain.Quiz, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT topic, time_limit, source_ref, markup FROM quizzes WHERE slug=$1`, slug)
	quiz, err := s.scan(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	return quiz, nil
}

func (s *QuizStore) List(ctx context.Context) ([]domain.Quiz, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT topic, time_limit, source_ref, markup FROM quizzes ORDER BY slug`)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	defer rows.Close()

	var out []domain.Quiz
	for rows.Next() {
		quiz, err := s.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("list quizzes: %w", err)
		}
		out = append(out, quiz)
	}
	return out, rows.Err()
}

func (s *QuizStore) DeleteAll(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM quizzes`)
	if err != nil {
		return 0, fmt.Errorf("delete quizzes: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *QuizStore) scan(row pgx.Row) (domain.Quiz, error) {
	var (
		topic, sourceRef, text string
		timeLimit              int
	)
	if err := row.Scan(&topic, &timeLimit, &sourceRef, &text); err != nil {
		return domain.Quiz{}, err
	}
	quizzes := s.parser.Parse(text, sourceRef)
	if len(quizzes) != 1 {
		return domain.Quiz{}, fmt.Errorf("stored markup for %q holds %d quizzes", topic, len(quizzes))
	}
	quiz := quizzes[0]
	quiz.Topic = topic
	quiz.TimeLimit = timeLimit
	return quiz, nil
}
