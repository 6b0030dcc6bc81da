package app

import (
	"context"

	"quiz-lobby-service/internal/domain"
)

// Store abstracts durable session state (in-memory, Postgres, etc). All
// mutating methods must serialize per row: UpdateSession and UpdateParticipant
// run their closure against a freshly-read record, and ApplyAnswer executes as
// an atomic unit per (participant, question index) so the already-solved guard
// cannot be bypassed by a race.
type Store interface {
	// CreateSession persists a new session. It fails with domain.ErrCodeTaken
	// when the join code is held by another session that has not finished.
	CreateSession(ctx context.Context, session domain.Session) error
	Session(ctx context.Context, id string) (domain.Session, error)
	SessionByCode(ctx context.Context, code string) (domain.Session, error)
	// UpdateSession applies fn to the current session record and persists the
	// result. If fn returns an error, nothing is written.
	UpdateSession(ctx context.Context, id string, fn func(*domain.Session) error) (domain.Session, error)

	// CreateParticipant persists a new participant. It fails with
	// domain.ErrNameTaken on a case-insensitive display name collision with a
	// non-kicked participant in the same session.
	CreateParticipant(ctx context.Context, participant domain.Participant) error
	Participant(ctx context.Context, id string) (domain.Participant, error)
	// Participants returns all participants of a session, kicked included,
	// ordered by join time. Callers filter for player-facing views.
	Participants(ctx context.Context, sessionID string) ([]domain.Participant, error)
	UpdateParticipant(ctx context.Context, id string, fn func(*domain.Participant) error) (domain.Participant, error)

	// ApplyAnswer loads the answer of record for (participantID, questionIndex)
	// and the participant, passes both to fn (prev is nil when no record
	// exists), and persists the returned record plus the mutated participant.
	// If fn returns an error, nothing is written.
	ApplyAnswer(ctx context.Context, participantID string, questionIndex int,
		fn func(prev *domain.AnswerRecord, p *domain.Participant) (domain.AnswerRecord, error)) (domain.Participant, error)
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// EventType identifies a change-feed event.
type EventType string

const (
	EventStatusChanged      EventType = "statusChanged"
	EventParticipantJoined  EventType = "participantJoined"
	EventParticipantUpdated EventType = "participantUpdated"
	EventParticipantRemoved EventType = "participantRemoved"
)

// Event is a session mutation broadcast to subscribers. Delivery is
// at-least-once and best-effort; clients reconcile via SessionView.
type Event struct {
	Type          EventType           `json:"type"`
	SessionID     string              `json:"sessionId"`
	Session       *domain.Session     `json:"session,omitempty"`
	Participant   *domain.Participant `json:"participant,omitempty"`
	ParticipantID string              `json:"participantId,omitempty"`
}

// ChangeFeed fans mutations out to connected clients. Publish is
// fire-and-forget; the core never blocks on delivery.
type ChangeFeed interface {
	Publish(ctx context.Context, sessionID string, event Event)
	// Subscribe returns a channel of events for one session. The caller must
	// invoke the returned cancel function to avoid leaks.
	Subscribe(ctx context.Context, sessionID string) (<-chan Event, func(), error)
}
