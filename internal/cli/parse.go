package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"quizdown-service/internal/domain"
	"quizdown-service/internal/markup"
)

type parsedChoice struct {
	Text    string `json:"text" yaml:"text"`
	Correct bool   `json:"correct" yaml:"correct"`
}

type parsedQuestion struct {
	Text    string         `json:"text" yaml:"text"`
	Choices []parsedChoice `json:"choices" yaml:"choices"`
}

type parsedQuiz struct {
	Slug      string           `json:"slug" yaml:"slug"`
	Topic     string           `json:"topic" yaml:"topic"`
	TimeLimit int              `json:"timeLimit" yaml:"timeLimit"`
	Questions []parsedQuestion `json:"questions" yaml:"questions"`
}

// NewParseCmd prints the quizzes found in a document without starting the server.
func NewParseCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "parse FILE",
		Short: "Parse a quiz document and print what it contains",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			quizzes, err := markup.NewParser(noShuffle).ParseReader(f, args[0])
			if err != nil {
				return err
			}
			if len(quizzes) == 0 {
				return domain.ErrNoQuizzesFound
			}
			return printQuizzes(cmd.OutOrStdout(), quizzes, format)
		},
	}
	cmd.Flags().StringVar(&format, "format", "yaml", "output format: yaml, json or markup")
	return cmd
}

// noShuffle keeps authoring order in the printed output.
func noShuffle(int, func(i, j int)) {}

func printQuizzes(w io.Writer, quizzes []domain.Quiz, format string) error {
	if format == "markup" {
		out, err := markup.FormatAll(quizzes)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, out)
		return err
	}

	out := make([]parsedQuiz, len(quizzes))
	for i, q := range quizzes {
		out[i] = parsedQuiz{Slug: q.Slug(), Topic: q.Topic, TimeLimit: q.TimeLimit}
		for _, question := range q.Questions {
			pq := parsedQuestion{Text: question.Text}
			for _, c := range question.OriginalChoices {
				pq.Choices = append(pq.Choices, parsedChoice{Text: c.Text, Correct: c.IsCorrect})
			}
			out[i].Questions = append(out[i].Questions, pq)
		}
	}

	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(out)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
