package engine

import "quizflow/internal/domain"

// ResolveNext computes the index of the question after current, given the
// recorded answers. ok is false when the quiz ends. Branching directives on
// the selected option take priority over sequential order: JumpToEnd finishes
// the quiz immediately, JumpToQuestionID moves to that question if it still
// exists. Jump targets are resolved by id lookup; the sequential fallback is
// index+1 on the position-ordered slice. Index arithmetic is only valid for
// the fallback.
//
// Multiple-choice answers are slices and are never inspected for jump
// targets; an absent answer or a stale jump target falls through to the
// sequential advance.
func ResolveNext(current int, answers domain.AnswerSet, questions []domain.Question) (int, bool) {
	if current < 0 || current >= len(questions) {
		return 0, false
	}
	question := questions[current]
	if question.Type.IsChoice() {
		if optionID, ok := answers[question.ID].(string); ok {
			if option := optionByID(question.Options, optionID); option != nil {
				if option.JumpToEnd {
					return 0, false
				}
				if option.JumpToQuestionID != "" {
					if target := indexByID(questions, option.JumpToQuestionID); target >= 0 {
						return target, true
					}
				}
			}
		}
	}
	if current+1 < len(questions) {
		return current + 1, true
	}
	return 0, false
}

func indexByID(questions []domain.Question, id string) int {
	for i := range questions {
		if questions[i].ID == id {
			return i
		}
	}
	return -1
}
