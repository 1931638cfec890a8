package domain

import (
	"math/rand"
	"regexp"
	"strings"
	"time"
)

// ShuffleFunc permutes n elements using swap. rand.Shuffle satisfies it.
type ShuffleFunc func(n int, swap func(i, j int))

// DefaultShuffle is safe for concurrent use.
var DefaultShuffle ShuffleFunc = rand.Shuffle

// Choice is a single answer option. Two choices are equal when text and
// correctness match.
type Choice struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

// Question keeps the authoring order in OriginalChoices and a shuffled
// presentation order in Choices.
type Question struct {
	Text            string   `json:"text"`
	Choices         []Choice `json:"choices"`
	OriginalChoices []Choice `json:"originalChoices"`
}

// NewQuestion copies choices into the authoring order and shuffles the
// presentation order once.
func NewQuestion(text string, choices []Choice, shuffle ShuffleFunc) Question {
	original := append([]Choice(nil), choices...)
	presented := append([]Choice(nil), choices...)
	if shuffle == nil {
		shuffle = DefaultShuffle
	}
	shuffle(len(presented), func(i, j int) {
		presented[i], presented[j] = presented[j], presented[i]
	})
	return Question{Text: text, Choices: presented, OriginalChoices: original}
}

// CorrectChoices returns the correct choices in authoring order.
func (q Question) CorrectChoices() []Choice {
	out := make([]Choice, 0, len(q.OriginalChoices))
	for _, c := range q.OriginalChoices {
		if c.IsCorrect {
			out = append(out, c)
		}
	}
	return out
}

// Multiple reports whether more than one choice must be selected.
func (q Question) Multiple() bool {
	return len(q.CorrectChoices()) > 1
}

func (q Question) clone() Question {
	return Question{
		Text:            q.Text,
		Choices:         append([]Choice(nil), q.Choices...),
		OriginalChoices: append([]Choice(nil), q.OriginalChoices...),
	}
}

// Quiz is a topic with ordered questions. TimeLimit is in seconds, 0 means untimed.
type Quiz struct {
	Topic     string     `json:"topic"`
	Questions []Question `json:"questions"`
	TimeLimit int        `json:"timeLimit"`
	SourceRef string     `json:"sourceRef,omitempty"`
}

var slugSeparator = regexp.MustCompile(`[^\p{L}\p{N}_-]+`)

// Slug derives the lookup key from the topic.
func Slug(topic string) string {
	return strings.Trim(slugSeparator.ReplaceAllString(strings.ToLower(topic), "-"), "-")
}

// Slug is a pure function of Topic; topics that normalize alike share a slug.
func (q Quiz) Slug() string {
	return Slug(q.Topic)
}

// Shuffle permutes the question order in place. Choice order is left alone.
func (q *Quiz) Shuffle(shuffle ShuffleFunc) {
	if shuffle == nil {
		shuffle = DefaultShuffle
	}
	shuffle(len(q.Questions), func(i, j int) {
		q.Questions[i], q.Questions[j] = q.Questions[j], q.Questions[i]
	})
}

// Clone returns a deep copy that shares no slices with q.
func (q Quiz) Clone() Quiz {
	out := q
	out.Questions = make([]Question, len(q.Questions))
	for i, question := range q.Questions {
		out.Questions[i] = question.clone()
	}
	return out
}

// QuizSummary is the listing view of a stored quiz.
type QuizSummary struct {
	Slug      string `json:"slug"`
	Topic     string `json:"topic"`
	Questions int    `json:"questions"`
	TimeLimit int    `json:"timeLimit"`
}

// Summary returns the listing view of q.
func (q Quiz) Summary() QuizSummary {
	return QuizSummary{
		Slug:      q.Slug(),
		Topic:     q.Topic,
		Questions: len(q.Questions),
		TimeLimit: q.TimeLimit,
	}
}

// SessionStatus is the lifecycle state of a learner attempt.
type SessionStatus string

const (
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
)

// Session is one learner attempt at a quiz. Quiz is a live copy owned by the session.
type Session struct {
	ID          string                     `json:"id"`
	Slug        string                     `json:"slug"`
	Quiz        Quiz                       `json:"quiz"`
	Status      SessionStatus              `json:"status"`
	StartedAt   time.Time                  `json:"startedAt"`
	SubmittedAt *time.Time                 `json:"submittedAt,omitempty"`
	Answers     map[int][]Choice           `json:"answers"`
	Evaluations map[int]ResponseEvaluation `json:"evaluations"`
	Score       *int                       `json:"score,omitempty"`
	Profile     LearnerProfile             `json:"profile"`
}

// Total is the number of questions in the session's quiz.
func (s Session) Total() int {
	return len(s.Quiz.Questions)
}

// Completed reports whether the session has been submitted.
func (s Session) Completed() bool {
	return s.Status == SessionCompleted
}

// Clone returns a deep copy of the session.
func (s Session) Clone() Session {
	out := s
	out.Quiz = s.Quiz.Clone()
	out.Profile = s.Profile.Clone()
	if s.SubmittedAt != nil {
		at := *s.SubmittedAt
		out.SubmittedAt = &at
	}
	if s.Score != nil {
		score := *s.Score
		out.Score = &score
	}
	out.Answers = make(map[int][]Choice, len(s.Answers))
	for idx, selected := range s.Answers {
		out.Answers[idx] = append([]Choice(nil), selected...)
	}
	out.Evaluations = make(map[int]ResponseEvaluation, len(s.Evaluations))
	for idx, eval := range s.Evaluations {
		out.Evaluations[idx] = eval.Clone()
	}
	return out
}
