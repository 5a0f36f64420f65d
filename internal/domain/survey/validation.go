package survey

import (
	"fmt"
	"slices"
)

// Validate checks answer shapes and returns the required questions left
// unanswered, in form order. Unknown question ids are an error.
func Validate(form Form, r Responses) ([]string, error) {
	byID := make(map[string]Question, len(form.Questions))
	for _, q := range form.Questions {
		byID[q.ID] = q
	}
	for id := range r {
		if _, ok := byID[id]; !ok {
			return nil, fmt.Errorf("%w: unknown question %q", ErrInvalidInput, id)
		}
	}

	var missing []string
	for _, q := range form.Questions {
		v := r[q.ID]
		if !answered(v) {
			if q.required(r) {
				missing = append(missing, q.ID)
			}
			continue
		}
		if err := checkAnswer(q, v); err != nil {
			return nil, err
		}
	}
	return missing, nil
}

func checkAnswer(q Question, v any) error {
	switch q.Type {
	case AnswerLikert:
		n, ok := likertValue(v)
		if !ok || n < 1 || n > len(q.Options) {
			return fmt.Errorf("%w: %s must be 1-%d", ErrInvalidInput, q.ID, len(q.Options))
		}
	case AnswerChoice:
		s, ok := v.(string)
		if !ok || (len(q.Options) > 0 && !slices.Contains(q.Options, s)) {
			return fmt.Errorf("%w: %s has an unknown option", ErrInvalidInput, q.ID)
		}
	case AnswerMulti:
		if _, ok := stringList(v); !ok {
			return fmt.Errorf("%w: %s must be a list", ErrInvalidInput, q.ID)
		}
	case AnswerNumber:
		if _, ok := numberValue(v); !ok {
			return fmt.Errorf("%w: %s must be a number", ErrInvalidInput, q.ID)
		}
	case AnswerText:
		if _, ok := v.(string); !ok {
			return fmt.Errorf("%w: %s must be text", ErrInvalidInput, q.ID)
		}
	}
	return nil
}
