package domain

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a session. It only moves forward:
// waiting -> playing <-> paused -> finished.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusPaused   Status = "paused"
	StatusFinished Status = "finished"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusWaiting, StatusPlaying, StatusPaused, StatusFinished:
		return true
	}
	return false
}

// Active reports whether a session in this status still holds its join code.
// Codes are released for reuse once a session finishes.
func (s Status) Active() bool {
	return s == StatusWaiting || s == StatusPlaying || s == StatusPaused
}

// CanTransition reports whether the state machine permits moving to next.
// waiting must pass through playing before it can finish.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusWaiting:
		return next == StatusPlaying
	case StatusPlaying:
		return next == StatusPaused || next == StatusFinished
	case StatusPaused:
		return next == StatusPlaying || next == StatusFinished
	}
	return false
}

// Session is one quiz-playing event, located by players via its join code.
type Session struct {
	ID        string     `json:"id"`
	JoinCode  string     `json:"joinCode"`
	QuizID    string     `json:"quizId"`
	Status    Status     `json:"status"`
	CreatedAt time.Time  `json:"createdAt"`
	StartedAt *time.Time `json:"startedAt,omitempty"`
	PausedAt  *time.Time `json:"pausedAt,omitempty"`
}

// ApplyStatus validates and applies a status transition, maintaining the
// timestamp side effects: StartedAt is set once on first entry to playing,
// PausedAt is set on entry to paused and cleared on every other transition.
func (s *Session) ApplyStatus(next Status, now time.Time) error {
	if !next.Valid() || !s.Status.CanTransition(next) {
		return ErrInvalidTransition
	}
	switch next {
	case StatusPlaying:
		if s.StartedAt == nil {
			started := now
			s.StartedAt = &started
		}
		s.PausedAt = nil
	case StatusPaused:
		paused := now
		s.PausedAt = &paused
	case StatusFinished:
		s.PausedAt = nil
	}
	s.Status = next
	return nil
}

// Participant is one joined player within a session. Kicked participants are
// retained but hidden from player-facing views.
type Participant struct {
	ID              string     `json:"id"`
	SessionID       string     `json:"sessionId"`
	DisplayName     string     `json:"displayName"`
	CurrentQuestion int        `json:"currentQuestion"`
	JoinedAt        time.Time  `json:"joinedAt"`
	FinishedAt      *time.Time `json:"finishedAt,omitempty"`
	PenaltyUntil    *time.Time `json:"penaltyUntil,omitempty"`
	Kicked          bool       `json:"kicked"`
}

// AnswerRecord is the answer of record for one (participant, question) pair.
// Resubmissions overwrite it unless it is already correct.
type AnswerRecord struct {
	ParticipantID string    `json:"participantId"`
	QuestionIndex int       `json:"questionIndex"`
	SubmittedText string    `json:"submittedText"`
	IsCorrect     bool      `json:"isCorrect"`
	AnsweredAt    time.Time `json:"answeredAt"`
}

// AnswerResult summarizes the outcome of a submission for a single player.
type AnswerResult struct {
	Correct        bool `json:"correct"`
	Finished       bool `json:"finished,omitempty"`
	PenaltySeconds int  `json:"penaltySeconds,omitempty"`
}

// QuestionType tags the two supported question variants.
type QuestionType string

const (
	// QuestionText is answered by free text compared against CorrectAnswer.
	QuestionText QuestionType = "text"
	// QuestionChoice is answered by picking one of Options.
	QuestionChoice QuestionType = "choice"
)

// Option is a possible answer for a choice question.
type Option struct {
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Question is a tagged variant: text questions carry CorrectAnswer, choice
// questions carry Options.
type Question struct {
	Type          QuestionType `json:"type"`
	Prompt        string       `json:"prompt"`
	CorrectAnswer string       `json:"correctAnswer,omitempty"`
	Options       []Option     `json:"options,omitempty"`
}

// Quiz is the immutable content a session is played against.
type Quiz struct {
	ID                 string     `json:"id"`
	Title              string     `json:"title"`
	Questions          []Question `json:"questions"`
	WrongAnswerPenalty int        `json:"wrongAnswerPenalty"` // seconds, 0-60; defaults to 5 if zero
}

const (
	defaultPenaltySeconds = 5
	maxPenaltySeconds     = 60
)

// PenaltySeconds returns the quiz's wrong-answer penalty clamped to 0-60
// seconds, defaulting to 5 when unset.
func (q Quiz) PenaltySeconds() int {
	p := q.WrongAnswerPenalty
	if p == 0 {
		return defaultPenaltySeconds
	}
	if p < 0 {
		return 0
	}
	if p > maxPenaltySeconds {
		return maxPenaltySeconds
	}
	return p
}

// LeaderboardEntry is a snapshot-friendly ranking row for one participant.
type LeaderboardEntry struct {
	PlayerID        string     `json:"playerId"`
	DisplayName     string     `json:"displayName"`
	CurrentQuestion int        `json:"currentQuestion"`
	TotalQuestions  int        `json:"totalQuestions"`
	IsFinished      bool       `json:"isFinished"`
	FinishedAt      *time.Time `json:"finishedAt,omitempty"`
}

// SessionView is the canonical pull-based read of a session: clients that miss
// a change-feed event reconcile against this.
type SessionView struct {
	Session      Session       `json:"session"`
	Participants []Participant `json:"participants"`
}

const maxDisplayNameLen = 20

// NormalizeDisplayName trims the name and validates it against the join
// rules: non-empty after trimming, at most 20 characters.
func NormalizeDisplayName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", ErrNameInvalid
	}
	if len([]rune(trimmed)) > maxDisplayNameLen {
		return "", ErrNameInvalid
	}
	return trimmed, nil
}

// NameKey folds a display name for case-insensitive uniqueness checks.
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
