package engine

import (
	"context"

	"quizflow/internal/domain"
)

// Tracker records a respondent's attempt with a remote collaborator. Every
// method is best-effort: a failed call must never block or fail the
// user-visible flow. Open returns ok=false when the attempt could not be
// registered; the flow then runs untracked and implementations must treat
// later calls with an empty session id as no-ops.
type Tracker interface {
	Open(ctx context.Context, attribution domain.SessionAttribution) (sessionID string, ok bool)
	SyncAnswer(ctx context.Context, sessionID, questionID string, value any)
	Complete(ctx context.Context, sessionID string, lead map[string]string, answers domain.AnswerSet)
}

// NopTracker keeps an attempt untracked.
type NopTracker struct{}

func (NopTracker) Open(context.Context, domain.SessionAttribution) (string, bool) { return "", false }

func (NopTracker) SyncAnswer(context.Context, string, string, any) {}

func (NopTracker) Complete(context.Context, string, map[string]string, domain.AnswerSet) {}
