// Package filestore keeps quiz documents as markup files in a directory.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"quizdown-service/internal/domain"
	"quizdown-service/internal/markup"
)

const ext = ".md"

// QuizStore saves each quiz as {slug}.md. Any other *.md file in the
// directory is read as a document that may hold several quizzes; files are
// read in name order and a later file wins on slug collision.
type QuizStore struct {
	dir    string
	parser *markup.Parser
}

func NewQuizStore(dir string, parser *markup.Parser) (*QuizStore, error) {
	if dir == "" {
		dir = "./quizzes"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if parser == nil {
		parser = markup.NewParser(nil)
	}
	return &QuizStore{dir: dir, parser: parser}, nil
}

func (s *QuizStore) Save(_ context.Context, quiz domain.Quiz) error {
	slug := quiz.Slug()
	if slug == "" {
		return fmt.Errorf("save quiz %q: empty slug", quiz.Topic)
	}
	data, err := markup.Format(quiz)
	if err != nil {
		return fmt.Errorf("save quiz %q: %w", slug, err)
	}
	dst := filepath.Join(s.dir, slug+ext)
	tmp, err := os.CreateTemp(s.dir, "."+slug+"-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

func (s *QuizStore) Get(ctx context.Context, slug string) (domain.Quiz, error) {
	if quizzes, err := s.readFile(filepath.Join(s.dir, slug+ext)); err == nil {
		for _, quiz := range quizzes {
			if quiz.Slug() == slug {
				return quiz, nil
			}
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return domain.Quiz{}, err
	}

	all, err := s.List(ctx)
	if err != nil {
		return domain.Quiz{}, err
	}
	for _, quiz := range all {
		if quiz.Slug() == slug {
			return quiz, nil
		}
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}

func (s *QuizStore) List(_ context.Context) ([]domain.Quiz, error) {
	files, err := s.files()
	if err != nil {
		return nil, err
	}
	bySlug := make(map[string]domain.Quiz)
	for _, path := range files {
		quizzes, err := s.readFile(path)
		if err != nil {
			return nil, err
		}
		for _, quiz := range quizzes {
			bySlug[quiz.Slug()] = quiz
		}
	}
	out := make([]domain.Quiz, 0, len(bySlug))
	for _, quiz := range bySlug {
		out = append(out, quiz)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug() < out[j].Slug() })
	return out, nil
}

// DeleteAll removes every document file and reports how many quizzes they held.
func (s *QuizStore) DeleteAll(ctx context.Context) (int, error) {
	all, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	files, err := s.files()
	if err != nil {
		return 0, err
	}
	for _, path := range files {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return 0, err
		}
	}
	return len(all), nil
}

func (s *QuizStore) files() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ext) {
			continue
		}
		out = append(out, filepath.Join(s.dir, name))
	}
	sort.Strings(out)
	return out, nil
}

func (s *QuizStore) readFile(path string) ([]domain.Quiz, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return s.parser.ParseReader(f, filepath.Base(path))
}
