package engine

import "quizflow/internal/domain"

// Match classifies a score against the result tiers. Tiers are evaluated in
// list order and the first range that contains the score wins, so authoring
// order is semantically significant when ranges overlap. A tier with only one
// bound is open-ended on the other side; a tier with no bounds never matches
// here and can only be chosen through the fallback. When no range matches,
// the tier flagged as default is returned, then the first tier in the list.
// ok is false only for an empty tier list (callers render a generic
// completion message instead).
func Match(results []domain.QuizResult, score int) (domain.QuizResult, bool) {
	for _, r := range results {
		switch {
		case r.MinScore != nil && r.MaxScore != nil:
			if score >= *r.MinScore && score <= *r.MaxScore {
				return r, true
			}
		case r.MinScore != nil:
			if score >= *r.MinScore {
				return r, true
			}
		case r.MaxScore != nil:
			if score <= *r.MaxScore {
				return r, true
			}
		}
	}
	for _, r := range results {
		if r.IsDefault {
			return r, true
		}
	}
	// Authoring safety net: with no default flagged, fall back to the first
	// tier rather than leaving the respondent without a result.
	if len(results) > 0 {
		return results[0], true
	}
	return domain.QuizResult{}, false
}
