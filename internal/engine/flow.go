package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"quizflow/internal/domain"
)

// Screen identifies a state of the flow controller.
type Screen string

const (
	ScreenStart       Screen = "start"
	ScreenQuestion    Screen = "question"
	ScreenLeadCapture Screen = "lead_capture"
	ScreenResult      Screen = "result"
)

// Flow sequences one respondent's attempt through
// start → question ⇄ (branches) → lead_capture? → result. It owns the answer
// set and the navigation history, delegates next-question resolution to
// ResolveNext, and reports lifecycle events to a Tracker. The result screen
// is terminal.
//
// A Flow is safe for concurrent use; the delayed auto-advance fires on a
// timer goroutine and is invalidated by a generation counter, so a back
// navigation during the delay can never race with a stale advance.
type Flow struct {
	mu           sync.Mutex
	quiz         domain.Quiz
	questions    []domain.Question // position-ordered copy of quiz.Questions
	tracker      Tracker
	advanceDelay time.Duration

	screen        Screen
	current       int
	answers       domain.AnswerSet
	history       []int
	sessionID     string
	tracked       bool
	started       bool
	completed     bool
	leadSubmitted bool
	score         int
	result        domain.QuizResult
	matched       bool
	advanceGen    uint64
}

// NewFlow builds a flow for one attempt. advanceDelay is the pause between an
// auto-advancing selection and navigation; zero advances synchronously. A nil
// tracker leaves the attempt untracked.
func NewFlow(quiz domain.Quiz, tracker Tracker, advanceDelay time.Duration) *Flow {
	if tracker == nil {
		tracker = NopTracker{}
	}
	questions := make([]domain.Question, len(quiz.Questions))
	copy(questions, quiz.Questions)
	sort.SliceStable(questions, func(i, j int) bool {
		return questions[i].Position < questions[j].Position
	})
	return &Flow{
		quiz:         quiz,
		questions:    questions,
		tracker:      tracker,
		advanceDelay: advanceDelay,
		screen:       ScreenStart,
		current:      -1,
		answers:      domain.AnswerSet{},
	}
}

// Screen returns the current state.
func (f *Flow) Screen() Screen {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.screen
}

// CurrentQuestion returns the question being shown, if any.
func (f *Flow) CurrentQuestion() (domain.Question, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.screen != ScreenQuestion || f.current < 0 || f.current >= len(f.questions) {
		return domain.Question{}, false
	}
	return f.questions[f.current], true
}

// Answers returns a snapshot of the recorded answers.
func (f *Flow) Answers() domain.AnswerSet {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.answers.Clone()
}

// SessionID returns the remote session id; ok is false for untracked runs.
func (f *Flow) SessionID() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessionID, f.tracked
}

// Score returns the computed total; valid once the result screen is reached.
func (f *Flow) Score() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.score
}

// Result returns the matched result tier. ok is false before completion and
// for quizzes with an empty result list, where a generic completion message
// is rendered instead.
func (f *Flow) Result() (domain.QuizResult, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result, f.matched
}

// LeadPending reports whether the result screen should render an inline
// lead-capture form (position after_results, fields configured, nothing
// submitted yet).
func (f *Flow) LeadPending() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.screen == ScreenResult &&
		f.quiz.LeadPosition == domain.LeadAfterResults &&
		len(f.quiz.LeadFields) > 0 &&
		!f.leadSubmitted
}

// Start opens the remote session (best-effort, once per attempt) and enters
// the first question. A quiz with no questions routes straight to lead
// capture or the result.
func (f *Flow) Start(ctx context.Context, attribution domain.SessionAttribution) Screen {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.screen != ScreenStart {
		return f.screen
	}
	if !f.started {
		f.started = true
		f.sessionID, f.tracked = f.tracker.Open(ctx, attribution)
	}
	if len(f.questions) == 0 {
		f.finishQuestionsLocked(ctx)
		return f.screen
	}
	f.screen = ScreenQuestion
	f.current = 0
	return f.screen
}

// Answer records the value for the current question. Auto-advancing types
// (single choice, image choice, rating) schedule navigation after the
// configured delay; other types wait for an explicit Next.
func (f *Flow) Answer(ctx context.Context, value any) {
	f.mu.Lock()
	if f.screen != ScreenQuestion {
		f.mu.Unlock()
		return
	}
	question := f.questions[f.current]
	f.answers[question.ID] = value
	if !question.Type.AutoAdvances() {
		f.mu.Unlock()
		return
	}
	if f.advanceDelay <= 0 {
		f.advanceLocked(ctx)
		f.mu.Unlock()
		return
	}
	f.advanceGen++
	gen := f.advanceGen
	f.mu.Unlock()

	time.AfterFunc(f.advanceDelay, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.advanceGen != gen || f.screen != ScreenQuestion {
			return
		}
		f.advanceLocked(context.Background())
	})
}

// Next advances past the current question on explicit action. A required
// question blocks until answered; an unanswered optional question is skipped
// (an absent answer never branches).
func (f *Flow) Next(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.screen != ScreenQuestion {
		return nil
	}
	question := f.questions[f.current]
	if _, answered := f.answers[question.ID]; !answered && question.IsRequired {
		return domain.ErrAnswerRequired
	}
	f.advanceGen++ // supersedes any pending auto-advance
	f.advanceLocked(ctx)
	return nil
}

// Back pops the navigation history. Popping past the first visited question
// returns to the start screen. A pending auto-advance is cancelled.
func (f *Flow) Back() Screen {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.screen != ScreenQuestion {
		return f.screen
	}
	f.advanceGen++
	if len(f.history) == 0 {
		f.screen = ScreenStart
		f.current = -1
		return f.screen
	}
	f.current = f.history[len(f.history)-1]
	f.history = f.history[:len(f.history)-1]
	return f.screen
}

// SubmitLead validates the lead form and routes according to the capture
// position: before results it completes the attempt with the lead data
// bundled into the single completion call; on the result screen it re-targets
// the same session with a lead-only payload, at most once.
func (f *Flow) SubmitLead(ctx context.Context, lead map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.screen {
	case ScreenLeadCapture:
		if err := validateLead(f.quiz.LeadFields, lead); err != nil {
			return err
		}
		f.completeLocked(ctx, lead)
		return nil
	case ScreenResult:
		if f.quiz.LeadPosition != domain.LeadAfterResults || len(f.quiz.LeadFields) == 0 || f.leadSubmitted {
			return nil
		}
		if err := validateLead(f.quiz.LeadFields, lead); err != nil {
			return err
		}
		f.leadSubmitted = true
		f.tracker.Complete(ctx, f.sessionID, lead, nil)
		return nil
	default:
		return nil
	}
}

// advanceLocked syncs the answer for the question being left, then either
// moves to the resolved next question or finishes the question phase.
func (f *Flow) advanceLocked(ctx context.Context) {
	question := f.questions[f.current]
	if value, ok := f.answers[question.ID]; ok {
		f.tracker.SyncAnswer(ctx, f.sessionID, question.ID, value)
	}
	next, ok := ResolveNext(f.current, f.answers, f.questions)
	if !ok {
		f.finishQuestionsLocked(ctx)
		return
	}
	f.history = append(f.history, f.current)
	f.current = next
}

func (f *Flow) finishQuestionsLocked(ctx context.Context) {
	f.advanceGen++
	if f.quiz.LeadPosition == domain.LeadBeforeResults && len(f.quiz.LeadFields) > 0 {
		f.screen = ScreenLeadCapture
		return
	}
	f.completeLocked(ctx, nil)
}

// completeLocked runs the scorer and matcher exactly once over the full
// answer set and sends the single completion payload.
func (f *Flow) completeLocked(ctx context.Context, lead map[string]string) {
	if f.completed {
		return
	}
	f.completed = true
	f.score = Score(f.answers, f.questions)
	f.result, f.matched = Match(f.quiz.Results, f.score)
	f.screen = ScreenResult
	if lead != nil {
		f.leadSubmitted = true
	}
	f.tracker.Complete(ctx, f.sessionID, lead, f.answers.Clone())
}

func validateLead(fields []domain.LeadField, lead map[string]string) error {
	for _, field := range fields {
		if field.Required && strings.TrimSpace(lead[field.Name]) == "" {
			return fmt.Errorf("%w: %s", domain.ErrLeadFieldRequired, field.Name)
		}
	}
	return nil
}
