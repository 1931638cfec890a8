package domain

// ErrorEvaluation is the classifier verdict for one answer.
type ErrorEvaluation struct {
	Kind       ErrorKind `json:"kind"`
	Confidence float64   `json:"confidence"`
	Reasoning  string    `json:"reasoning"`
}

// Feedback explains the concept behind a question.
type Feedback struct {
	Concept     string   `json:"concept"`
	Explanation string   `json:"explanation"`
	KeyPoints   []string `json:"keyPoints"`
	Hints       []string `json:"hints,omitempty"`
}

// Suggestion is a follow-up study recommendation.
type Suggestion struct {
	Title       string   `json:"title"`
	Explanation string   `json:"explanation"`
	Resources   []string `json:"resources,omitempty"`
}

// ResponseEvaluation is the result of evaluating one answered question.
// Correct is always computed locally, never taken from the evaluator.
type ResponseEvaluation struct {
	Correct        bool            `json:"correct"`
	YourAnswer     []string        `json:"yourAnswer"`
	CorrectAnswers []string        `json:"correctAnswers"`
	Feedback       Feedback        `json:"feedback"`
	Error          ErrorEvaluation `json:"errorEvaluation"`
	Suggestions    []Suggestion    `json:"suggestions,omitempty"`
	Profile        LearnerProfile  `json:"profile"`
	Fallback       bool            `json:"fallback,omitempty"`
}

// Clone returns a deep copy.
func (e ResponseEvaluation) Clone() ResponseEvaluation {
	out := e
	out.YourAnswer = append([]string(nil), e.YourAnswer...)
	out.CorrectAnswers = append([]string(nil), e.CorrectAnswers...)
	out.Feedback.KeyPoints = append([]string(nil), e.Feedback.KeyPoints...)
	out.Feedback.Hints = append([]string(nil), e.Feedback.Hints...)
	out.Suggestions = append([]Suggestion(nil), e.Suggestions...)
	out.Profile = e.Profile.Clone()
	return out
}

// Fallback feedback payload used when an evaluator call fails.
const (
	FallbackConcept     = "Evaluation unavailable"
	FallbackExplanation = "Automatic feedback could not be generated for this answer."
)

// FallbackEvaluation is the deterministic substitute for a failed evaluator
// call. It carries the pre-submission profile unchanged.
func FallbackEvaluation(q Question, selected []Choice, profile LearnerProfile) ResponseEvaluation {
	return ResponseEvaluation{
		Correct:        IsCorrect(q, selected),
		YourAnswer:     ChoiceTexts(selected),
		CorrectAnswers: ChoiceTexts(q.CorrectChoices()),
		Feedback: Feedback{
			Concept:     FallbackConcept,
			Explanation: FallbackExplanation,
		},
		Error: ErrorEvaluation{
			Kind:       KindConceptualMisunderstanding,
			Confidence: 0,
			Reasoning:  "evaluation failed",
		},
		Profile:  profile.Clone(),
		Fallback: true,
	}
}

// QuizContext describes the style of a quiz for the evaluator.
type QuizContext struct {
	Style           string   `json:"style"`
	Complexity      string   `json:"complexity"`
	Language        string   `json:"language"`
	Domain          string   `json:"domain"`
	CoveredConcepts []string `json:"coveredConcepts"`
	TargetAudience  string   `json:"targetAudience"`
}

// DefaultQuizContext is used when context extraction is unavailable.
func DefaultQuizContext() QuizContext {
	return QuizContext{
		Style:           "academic",
		Complexity:      "intermediate",
		Language:        "en",
		Domain:          "general",
		CoveredConcepts: []string{},
		TargetAudience:  "undergraduate",
	}
}
