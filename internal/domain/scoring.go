package domain

// IsCorrect reports whether selected is exactly the set of correct choices.
// Order and duplicates are ignored; there is no partial credit.
func IsCorrect(q Question, selected []Choice) bool {
	want := make(map[Choice]struct{})
	for _, c := range q.CorrectChoices() {
		want[c] = struct{}{}
	}
	got := make(map[Choice]struct{}, len(selected))
	for _, c := range selected {
		got[c] = struct{}{}
	}
	if len(want) != len(got) {
		return false
	}
	for c := range got {
		if _, ok := want[c]; !ok {
			return false
		}
	}
	return true
}

// SelectChoices resolves submitted texts to the question's choices in
// presentation order. Unknown texts are dropped.
func SelectChoices(q Question, texts []string) []Choice {
	wanted := make(map[string]struct{}, len(texts))
	for _, t := range texts {
		wanted[t] = struct{}{}
	}
	var selected []Choice
	for _, c := range q.Choices {
		if _, ok := wanted[c.Text]; ok {
			selected = append(selected, c)
		}
	}
	return selected
}

// ChoiceTexts returns the texts of choices in order.
func ChoiceTexts(choices []Choice) []string {
	out := make([]string, len(choices))
	for i, c := range choices {
		out[i] = c.Text
	}
	return out
}
