package interview

import "time"

// Phase is the lifecycle state of a coaching session.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseIntake  Phase = "intake"
	PhaseLoading Phase = "loading"
	PhaseActive  Phase = "active"
	PhaseEnding  Phase = "ending"
	PhaseSummary Phase = "summary"
)

// HoldsQuestions reports whether a session in this phase must carry a non-empty question list.
func (p Phase) HoldsQuestions() bool {
	switch p {
	case PhaseActive, PhaseEnding, PhaseSummary:
		return true
	default:
		return false
	}
}

// Session is a point-in-time copy of a coaching session, safe to hand to callers.
type Session struct {
	ID             string         `json:"id"`
	Phase          Phase          `json:"phase"`
	IntakeKind     IntakeKind     `json:"intakeKind,omitempty"`
	Role           string         `json:"role,omitempty"`
	LoadingMessage string         `json:"loadingMessage,omitempty"`
	Questions      []string       `json:"questions,omitempty"`
	CurrentIndex   int            `json:"currentIndex"`
	Score          ScoreState     `json:"score"`
	Answers        []Answer       `json:"answers,omitempty"`
	Summary        *SummaryResult `json:"summary,omitempty"`
	LastError      string         `json:"lastError,omitempty"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// CurrentQuestion returns the prompt at CurrentIndex, or "" when no question is loaded.
func (s Session) CurrentQuestion() string {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Questions) {
		return ""
	}
	return s.Questions[s.CurrentIndex]
}

// AnswerSource tells how an answer was captured.
type AnswerSource string

const (
	AnswerTyped  AnswerSource = "typed"
	AnswerSpoken AnswerSource = "spoken"
)

// Answer is one candidate response recorded against a question.
type Answer struct {
	QuestionIndex int          `json:"questionIndex"`
	Text          string       `json:"text"`
	Source        AnswerSource `json:"source"`
	CreatedAt     time.Time    `json:"createdAt"`
}

// Utterance is a single text-to-speech request.
type Utterance struct {
	Text   string `json:"text"`
	Locale string `json:"locale"`
}

// SummaryResult is the analysis service's verdict on a finished session.
type SummaryResult struct {
	FocusScore   float64 `json:"focusScore"`
	PostureScore float64 `json:"postureScore"`
	Feedback     string  `json:"feedback"`
}

// Aggregate is the frame-level summary sent for analysis.
type Aggregate struct {
	AverageScore     int `json:"averageScore"`
	GoodPostureCount int `json:"goodPostureCount"`
	Frames           int `json:"frames"`
}

// DefaultQuestions is the built-in set used when the question service gives nothing usable.
func DefaultQuestions() []string {
	return []string{
		"Tell me about yourself.",
		"Why are you interested in this role?",
	}
}
