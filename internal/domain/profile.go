package domain

// ErrorKind classifies a learner's answer.
type ErrorKind string

const (
	KindCorrect                    ErrorKind = "correct"
	KindConceptualMisunderstanding ErrorKind = "conceptual_misunderstanding"
	KindPartialUnderstanding       ErrorKind = "partial_understanding"
	KindTerminologyConfusion       ErrorKind = "terminology_confusion"
	KindApplicationError           ErrorKind = "application_error"
	KindCarelessMistake            ErrorKind = "careless_mistake"
)

// ParseErrorKind maps unknown values to KindConceptualMisunderstanding.
func ParseErrorKind(raw string) ErrorKind {
	switch kind := ErrorKind(raw); kind {
	case KindCorrect, KindConceptualMisunderstanding, KindPartialUnderstanding,
		KindTerminologyConfusion, KindApplicationError, KindCarelessMistake:
		return kind
	default:
		return KindConceptualMisunderstanding
	}
}

// TopicProficiency tallies error kinds for one topic.
type TopicProficiency struct {
	Topic       string            `json:"topic"`
	ErrorCounts map[ErrorKind]int `json:"errorCounts"`
}

// Total is the number of answers recorded for the topic.
func (t TopicProficiency) Total() int {
	total := 0
	for _, n := range t.ErrorCounts {
		total += n
	}
	return total
}

// Correct is the number of answers recorded as correct.
func (t TopicProficiency) Correct() int {
	return t.ErrorCounts[KindCorrect]
}

// Accuracy is Correct/Total, or 0 without data.
func (t TopicProficiency) Accuracy() float64 {
	total := t.Total()
	if total == 0 {
		return 0
	}
	return float64(t.Correct()) / float64(total)
}

// LearnerProfile is the running per-topic tally for a learner.
type LearnerProfile struct {
	Topics []TopicProficiency `json:"topics"`
}

// Topic looks up the tally for name.
func (p LearnerProfile) Topic(name string) (TopicProficiency, bool) {
	for _, t := range p.Topics {
		if t.Topic == name {
			return t, true
		}
	}
	return TopicProficiency{}, false
}

// Record counts one answer of kind against topic.
func (p *LearnerProfile) Record(topic string, kind ErrorKind) {
	p.add(topic, kind, 1)
}

func (p *LearnerProfile) add(topic string, kind ErrorKind, n int) {
	for i := range p.Topics {
		if p.Topics[i].Topic == topic {
			if p.Topics[i].ErrorCounts == nil {
				p.Topics[i].ErrorCounts = make(map[ErrorKind]int)
			}
			p.Topics[i].ErrorCounts[kind] += n
			return
		}
	}
	p.Topics = append(p.Topics, TopicProficiency{
		Topic:       topic,
		ErrorCounts: map[ErrorKind]int{kind: n},
	})
}

func (p LearnerProfile) count(topic string, kind ErrorKind) int {
	t, ok := p.Topic(topic)
	if !ok {
		return 0
	}
	return t.ErrorCounts[kind]
}

// TotalAnswers sums answers across all topics.
func (p LearnerProfile) TotalAnswers() int {
	total := 0
	for _, t := range p.Topics {
		total += t.Total()
	}
	return total
}

// StrugglingTopics returns topics with accuracy below one half.
func (p LearnerProfile) StrugglingTopics() map[string]float64 {
	out := make(map[string]float64)
	for _, t := range p.Topics {
		if acc := t.Accuracy(); acc < 0.5 {
			out[t.Topic] = acc
		}
	}
	return out
}

// Clone returns a deep copy of the profile.
func (p LearnerProfile) Clone() LearnerProfile {
	out := LearnerProfile{Topics: make([]TopicProficiency, len(p.Topics))}
	for i, t := range p.Topics {
		counts := make(map[ErrorKind]int, len(t.ErrorCounts))
		for k, v := range t.ErrorCounts {
			counts[k] = v
		}
		out.Topics[i] = TopicProficiency{Topic: t.Topic, ErrorCounts: counts}
	}
	return out
}

// MergeProfiles applies, in argument order, each update's growth over base
// to a copy of base. Counts only grow, so decreases in an update are ignored.
// Updates that returned base unchanged contribute nothing.
func MergeProfiles(base LearnerProfile, updates ...LearnerProfile) LearnerProfile {
	merged := base.Clone()
	for _, update := range updates {
		for _, t := range update.Topics {
			for kind, n := range t.ErrorCounts {
				if delta := n - base.count(t.Topic, kind); delta > 0 {
					merged.add(t.Topic, kind, delta)
				}
			}
		}
	}
	return merged
}
