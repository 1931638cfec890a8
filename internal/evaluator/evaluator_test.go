package evaluator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"quizdown-service/internal/app"
	"quizdown-service/internal/domain"
	"quizdown-service/internal/markup"
)

// chatServer answers every completion with content and counts calls.
func chatServer(t *testing.T, status int, content string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "test-model" || len(req.Messages) != 2 {
			t.Errorf("unexpected request %+v", req)
		}
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": content}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestClient(url string) *Client {
	return NewClient(Config{BaseURL: url + "/", APIKey: "test-key", Model: "test-model"}, nil)
}

func wrongAnswer() app.EvaluationRequest {
	return app.EvaluationRequest{
		Question:       "What is the capital of France?",
		Choices:        []string{"Berlin", "Paris", "Rome"},
		CorrectAnswers: []string{"Paris"},
		Selected:       []string{"Rome"},
		Topic:          "Capitals",
		Context:        domain.DefaultQuizContext(),
	}
}

func TestEvaluateParsesFencedReply(t *testing.T) {
	reply := "```json\n" + `{
  "error_type": "terminology_confusion",
  "confidence": 1.7,
  "reasoning": "Mixed up capitals",
  "feedback": {"concept": "European capitals", "explanation": "Paris is the capital of France.", "key_points": ["Paris"]},
  "suggestions": [{"title": "Review capitals", "explanation": "Use a map"}]
}` + "\n```"
	srv, calls := chatServer(t, http.StatusOK, reply)
	client := newTestClient(srv.URL)

	resp, err := client.Evaluate(context.Background(), wrongAnswer())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one API call, got %d", calls.Load())
	}
	if resp.Error.Kind != domain.KindTerminologyConfusion || resp.Error.Confidence != 1 {
		t.Fatalf("unexpected classification %+v", resp.Error)
	}
	if resp.Feedback.Concept != "European capitals" || len(resp.Suggestions) != 1 {
		t.Fatalf("unexpected feedback %+v", resp)
	}
	topic, ok := resp.Profile.Topic("Capitals")
	if !ok || topic.ErrorCounts[domain.KindTerminologyConfusion] != 1 {
		t.Fatalf("verdict not recorded in profile: %+v", resp.Profile)
	}
}

func TestEvaluateExactMatchSkipsAPI(t *testing.T) {
	srv, calls := chatServer(t, http.StatusOK, "{}")
	client := newTestClient(srv.URL)

	req := wrongAnswer()
	req.Selected = []string{"Paris"}
	req.Correct = true
	resp, err := client.Evaluate(context.Background(), req)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("exact match must not call the API")
	}
	if resp.Error.Kind != domain.KindCorrect || resp.Error.Confidence != 1 || resp.Error.Reasoning != "Exact match" {
		t.Fatalf("unexpected exact-match verdict %+v", resp.Error)
	}
	if topic, _ := resp.Profile.Topic("Capitals"); topic.Correct() != 1 {
		t.Fatalf("correct answer not recorded: %+v", resp.Profile)
	}
}

func TestEvaluateFailsClosed(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		content string
	}{
		{"server error", http.StatusInternalServerError, "{}"},
		{"invalid json", http.StatusOK, "not json"},
		{"empty content", http.StatusOK, "   "},
		{"missing fields", http.StatusOK, `{"confidence": 0.4}`},
	}
	for _, tc := range cases {
		srv, _ := chatServer(t, tc.status, tc.content)
		resp, err := newTestClient(srv.URL).Evaluate(context.Background(), wrongAnswer())
		if err == nil {
			t.Fatalf("%s: expected error, got %+v", tc.name, resp)
		}
	}

	unconfigured := NewClient(Config{BaseURL: "http://127.0.0.1:1"}, nil)
	if _, err := unconfigured.Evaluate(context.Background(), wrongAnswer()); err == nil {
		t.Fatalf("expected error without API key")
	}
}

func TestEvaluateCannotMarkWrongAnswerCorrect(t *testing.T) {
	srv, _ := chatServer(t, http.StatusOK, `{"error_type": "correct", "confidence": 0.9, "reasoning": "r", "feedback": {"concept": "c", "explanation": "e"}}`)
	resp, err := newTestClient(srv.URL).Evaluate(context.Background(), wrongAnswer())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if resp.Error.Kind == domain.KindCorrect {
		t.Fatalf("wrong selection classified as correct")
	}
}

func TestDuplicateChoiceTextsFollowScoring(t *testing.T) {
	// Both "Paris" choices selected: the texts match the correct set but the
	// wrong duplicate makes the answer incorrect.
	quiz := domain.Quiz{Topic: "Capitals", Questions: []domain.Question{
		domain.NewQuestion("Capital of France?", []domain.Choice{
			{Text: "Paris", IsCorrect: true},
			{Text: "Paris"},
			{Text: "Rome"},
		}, func(int, func(i, j int)) {}),
	}}
	selected := map[int][]domain.Choice{0: quiz.Questions[0].OriginalChoices[:2]}

	srv, calls := chatServer(t, http.StatusOK, `{"error_type": "correct", "confidence": 0.9, "reasoning": "r", "feedback": {"concept": "c", "explanation": "e"}}`)
	evaluators := map[string]app.Evaluator{
		"heuristic": Heuristic{},
		"client":    newTestClient(srv.URL),
	}
	for name, eval := range evaluators {
		outcome := app.NewOrchestrator(eval, 1, time.Second, nil, nil).
			Evaluate(context.Background(), quiz, selected, domain.LearnerProfile{}, domain.DefaultQuizContext(), nil)
		got := outcome.Evaluations[0]
		if got.Correct || outcome.Score != 0 {
			t.Fatalf("%s: duplicate selection scored correct: %+v", name, got)
		}
		if got.Error.Kind == domain.KindCorrect {
			t.Fatalf("%s: evaluation kind disagrees with the score", name)
		}
		if topic, _ := outcome.Profile.Topic("Capitals"); topic.Correct() != 0 || topic.Total() != 1 {
			t.Fatalf("%s: profile recorded a correct answer: %+v", name, outcome.Profile)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("expected the client to consult the API once, got %d", calls.Load())
	}
}

func TestQuizContextFillsDefaults(t *testing.T) {
	srv, _ := chatServer(t, http.StatusOK, `{"style": "practical", "language": "hu", "covered_concepts": ["Paris", "Rome"]}`)
	quiz := domain.Quiz{Topic: "Capitals", Questions: []domain.Question{
		domain.NewQuestion("Capital of France?", []domain.Choice{{Text: "Paris", IsCorrect: true}}, nil),
	}}

	quizCtx, err := newTestClient(srv.URL).QuizContext(context.Background(), quiz)
	if err != nil {
		t.Fatalf("quiz context: %v", err)
	}
	if quizCtx.Style != "practical" || quizCtx.Language != "hu" || len(quizCtx.CoveredConcepts) != 2 {
		t.Fatalf("unexpected context %+v", quizCtx)
	}
	if quizCtx.Complexity != "intermediate" || quizCtx.TargetAudience != "undergraduate" {
		t.Fatalf("blank fields must keep defaults: %+v", quizCtx)
	}
}

func TestGenerateQuestionsDropsMalformed(t *testing.T) {
	srv, _ := chatServer(t, http.StatusOK, `{"questions": [
  {"text": "Capital of Spain?", "choices": [{"text": "Madrid", "is_correct": true}, {"text": "Lisbon"}]},
  {"text": "No correct", "choices": [{"text": "a"}, {"text": "b"}]},
  {"text": "", "choices": [{"text": "a", "is_correct": true}, {"text": "b"}]},
  {"text": "Capital of Italy?", "choices": [{"text": "Rome", "is_correct": true}, {"text": "Milan"}]}
]}`)
	client := newTestClient(srv.URL)
	client.shuffle = func(int, func(i, j int)) {}

	questions, err := client.GenerateQuestions(context.Background(), "Capitals", nil, 5)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(questions) != 2 || questions[0].Text != "Capital of Spain?" || questions[1].Text != "Capital of Italy?" {
		t.Fatalf("unexpected questions %+v", questions)
	}
	if !questions[0].Choices[0].IsCorrect {
		t.Fatalf("correctness lost: %+v", questions[0])
	}

	empty, _ := chatServer(t, http.StatusOK, `{"questions": []}`)
	if _, err := newTestClient(empty.URL).GenerateQuestions(context.Background(), "Capitals", nil, 1); err == nil {
		t.Fatalf("expected error for empty generation")
	}
}

func TestGenerateQuestionsNormalizesText(t *testing.T) {
	srv, _ := chatServer(t, http.StatusOK, `{"questions": [
  {"text": "Capital?", "choices": [{"text": "Paris", "is_correct": true}, {"text": "Rome"}]},
  {"text": "-5 + 3 = ?", "choices": [{"text": "-2", "is_correct": true}, {"text": "8"}]},
  {"text": "What does\nthis   print?", "choices": [{"text": "  1\n2 ", "is_correct": true}, {"text": "nothing"}]},
  {"text": "> quoted", "choices": [{"text": "a", "is_correct": true}, {"text": "b"}]}
]}`)
	client := newTestClient(srv.URL)
	client.shuffle = func(int, func(i, j int)) {}

	questions, err := client.GenerateQuestions(context.Background(), "Trivia", nil, 4)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(questions) != 2 || questions[0].Text != "Capital?" || questions[1].Text != "What does this print?" {
		t.Fatalf("unexpected questions %+v", questions)
	}
	if got := questions[1].OriginalChoices[0].Text; got != "1 2" {
		t.Fatalf("choice text not collapsed: %q", got)
	}

	quiz := domain.Quiz{Topic: "Trivia", Questions: questions}
	data, err := markup.Format(quiz)
	if err != nil {
		t.Fatalf("format generated questions: %v", err)
	}
	parsed := markup.NewParser(client.shuffle).Parse(data, "generated")
	if len(parsed) != 1 || len(parsed[0].Questions) != 2 {
		t.Fatalf("generated questions did not survive a round trip: %+v\n%s", parsed, data)
	}
	if parsed[0].Questions[1].Text != "What does this print?" {
		t.Fatalf("unexpected reparsed text %q", parsed[0].Questions[1].Text)
	}
}

func TestHeuristicClassifiesByOverlap(t *testing.T) {
	req := wrongAnswer()
	req.CorrectAnswers = []string{"Paris", "Lyon"}

	req.Selected = []string{"Paris"}
	resp, _ := Heuristic{}.Evaluate(context.Background(), req)
	if resp.Error.Kind != domain.KindPartialUnderstanding {
		t.Fatalf("expected partial understanding, got %s", resp.Error.Kind)
	}

	req.Selected = []string{"Rome"}
	resp, _ = Heuristic{}.Evaluate(context.Background(), req)
	if resp.Error.Kind != domain.KindConceptualMisunderstanding {
		t.Fatalf("expected conceptual misunderstanding, got %s", resp.Error.Kind)
	}
	if !strings.Contains(resp.Feedback.Explanation, "Paris, Lyon") {
		t.Fatalf("feedback should name the correct answers: %q", resp.Feedback.Explanation)
	}

	req.Selected = []string{"Lyon", "Paris"}
	req.Correct = true
	resp, _ = Heuristic{}.Evaluate(context.Background(), req)
	if resp.Error.Kind != domain.KindCorrect {
		t.Fatalf("expected correct, got %s", resp.Error.Kind)
	}
	if resp.Profile.TotalAnswers() != 1 {
		t.Fatalf("expected one recorded answer, got %d", resp.Profile.TotalAnswers())
	}
}
