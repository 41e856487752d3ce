package enums

import "fmt"

// QuestionKind enumerates the follow-up prompts an operator can ask about a
// defect image. Free text is never forwarded verbatim to the model; anything
// unrecognized falls back to the damage summary.
type QuestionKind string

const (
	QuestionDamageSummary QuestionKind = "damage-summary"
	QuestionActionAdvice  QuestionKind = "action-advice"
)

var validQuestionKinds = []QuestionKind{
	QuestionDamageSummary,
	QuestionActionAdvice,
}

var questionPrompts = map[QuestionKind]string{
	QuestionDamageSummary: "Summarize the structural damage visible in this image.",
	QuestionActionAdvice:  "What remediation work should be scheduled for the damage in this image?",
}

// String implements fmt.Stringer.
func (q QuestionKind) String() string {
	return string(q)
}

// IsValid reports whether the value matches a supported question kind.
func (q QuestionKind) IsValid() bool {
	for _, candidate := range validQuestionKinds {
		if candidate == q {
			return true
		}
	}
	return false
}

// Prompt returns the model prompt template for the question kind.
func (q QuestionKind) Prompt() string {
	if prompt, ok := questionPrompts[q]; ok {
		return prompt
	}
	return questionPrompts[QuestionDamageSummary]
}

// ParseQuestionKind converts raw input into QuestionKind, falling back to the
// damage summary for unrecognized values.
func ParseQuestionKind(value string) QuestionKind {
	for _, candidate := range validQuestionKinds {
		if string(candidate) == value {
			return candidate
		}
	}
	return QuestionDamageSummary
}

// MustParseQuestionKind is the strict variant used by request validation.
func MustParseQuestionKind(value string) (QuestionKind, error) {
	for _, candidate := range validQuestionKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid question kind %q", value)
}
