package domain

import "time"

// QuestionType enumerates the answer shapes a question can collect.
type QuestionType string

const (
	SingleChoice   QuestionType = "single_choice"
	MultipleChoice QuestionType = "multiple_choice"
	ImageChoice    QuestionType = "image_choice"
	TextInput      QuestionType = "text_input"
	NumberInput    QuestionType = "number_input"
	Rating         QuestionType = "rating"
)

// IsChoice reports whether answers to this type are option ids.
func (t QuestionType) IsChoice() bool {
	return t == SingleChoice || t == MultipleChoice || t == ImageChoice
}

// AutoAdvances reports whether selecting a value moves to the next question
// without an explicit "next" action.
func (t QuestionType) AutoAdvances() bool {
	return t == SingleChoice || t == ImageChoice || t == Rating
}

// AnswerOption is one selectable answer. JumpToQuestionID and JumpToEnd are
// mutually exclusive branching directives; when neither is set the flow falls
// through to the next question by position.
type AnswerOption struct {
	ID               string `json:"id"`
	Text             string `json:"text,omitempty"`
	Points           int    `json:"points,omitempty"`
	JumpToQuestionID string `json:"jumpToQuestionId,omitempty"`
	JumpToEnd        bool   `json:"jumpToEnd,omitempty"`
}

// Question is one step of a quiz. Options are present only for choice types;
// RatingScale applies to rating questions and defines the range 1..RatingScale.
type Question struct {
	ID          string         `json:"id"`
	Type        QuestionType   `json:"questionType"`
	Prompt      string         `json:"prompt,omitempty"`
	Position    int            `json:"position"`
	IsRequired  bool           `json:"isRequired,omitempty"`
	Options     []AnswerOption `json:"options,omitempty"`
	RatingScale int            `json:"ratingScale,omitempty"`
}

// QuizResult is a score tier. Nil bounds are open-ended; list order is
// authoritative when ranges overlap (first match wins).
type QuizResult struct {
	ID          string `json:"id"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	MinScore    *int   `json:"minScore,omitempty"`
	MaxScore    *int   `json:"maxScore,omitempty"`
	IsDefault   bool   `json:"isDefault,omitempty"`
}

// LeadCapturePosition controls when contact details are requested relative to
// the result screen.
type LeadCapturePosition string

const (
	LeadBeforeResults LeadCapturePosition = "before_results"
	LeadAfterResults  LeadCapturePosition = "after_results"
)

// LeadField describes one input of the lead-capture form.
type LeadField struct {
	Name     string `json:"name"`
	Label    string `json:"label,omitempty"`
	Required bool   `json:"required,omitempty"`
}

// Quiz is the immutable definition of one quiz: questions ordered by position,
// result tiers, and lead-capture configuration.
type Quiz struct {
	ID           string              `json:"id"`
	Title        string              `json:"title,omitempty"`
	Questions    []Question          `json:"questions"`
	Results      []QuizResult        `json:"results,omitempty"`
	LeadFields   []LeadField         `json:"leadCaptureFields,omitempty"`
	LeadPosition LeadCapturePosition `json:"leadCapturePosition,omitempty"`
}

// AnswerSet maps question id to the recorded value: an option id or raw string
// for scalar types, a string slice (or []any from JSON) for multiple choice.
// Entries are added as the respondent progresses and never rolled back.
type AnswerSet map[string]any

// Clone returns a shallow copy so callers can hand out snapshots.
func (a AnswerSet) Clone() AnswerSet {
	out := make(AnswerSet, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// SessionAttribution captures UTM/referrer data at session creation only.
type SessionAttribution struct {
	UTMSource   string `json:"utmSource,omitempty"`
	UTMMedium   string `json:"utmMedium,omitempty"`
	UTMCampaign string `json:"utmCampaign,omitempty"`
	UTMTerm     string `json:"utmTerm,omitempty"`
	UTMContent  string `json:"utmContent,omitempty"`
	ReferrerURL string `json:"referrerUrl,omitempty"`
}

// Session is one respondent's attempt at a quiz. Score and ResultID are set
// when the session completes.
type Session struct {
	ID          string             `json:"id"`
	QuizID      string             `json:"quizId"`
	Attribution SessionAttribution `json:"attribution,omitempty"`
	Answers     AnswerSet          `json:"answers"`
	Lead        map[string]string  `json:"leadData,omitempty"`
	Score       int                `json:"score"`
	ResultID    string             `json:"resultId,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"`
	CompletedAt *time.Time         `json:"completedAt,omitempty"`
}

// Completed reports whether the session has received its completion payload.
func (s Session) Completed() bool {
	return s.CompletedAt != nil
}
