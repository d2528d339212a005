package engine

import "quizflow/internal/domain"

// Score sums the points of every selected option across the answer set.
// Entries for questions that no longer exist in the definition are skipped,
// as are selections that do not resolve to an option. Text, number, and
// rating values carry no points, so they contribute zero. Summation is
// commutative: the result does not depend on map iteration order.
func Score(answers domain.AnswerSet, questions []domain.Question) int {
	total := 0
	for questionID, value := range answers {
		question := questionByID(questions, questionID)
		if question == nil {
			continue
		}
		for _, optionID := range selectedOptionIDs(value) {
			if option := optionByID(question.Options, optionID); option != nil {
				total += option.Points
			}
		}
	}
	return total
}

// selectedOptionIDs normalizes a recorded answer value to a list of option
// ids. Scalars become a one-element list; non-string elements are dropped.
func selectedOptionIDs(value any) []string {
	switch v := value.(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []string:
		return v
	case []any:
		ids := make([]string, 0, len(v))
		for _, elem := range v {
			if s, ok := elem.(string); ok {
				ids = append(ids, s)
			}
		}
		return ids
	default:
		return nil
	}
}

func questionByID(questions []domain.Question, id string) *domain.Question {
	for i := range questions {
		if questions[i].ID == id {
			return &questions[i]
		}
	}
	return nil
}

func optionByID(options []domain.AnswerOption, id string) *domain.AnswerOption {
	for i := range options {
		if options[i].ID == id {
			return &options[i]
		}
	}
	return nil
}
