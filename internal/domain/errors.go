package domain

import "errors"

var (
	// ErrSessionNotFound is returned when no session matches the given ID or join code.
	ErrSessionNotFound = errors.New("session not found")
	// ErrParticipantNotFound is returned when a participant ID does not resolve.
	ErrParticipantNotFound = errors.New("participant not found")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrInvalidQuestion indicates a question index outside the quiz.
	ErrInvalidQuestion = errors.New("invalid question index")
	// ErrInvalidTransition indicates a status change the state machine forbids.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrSessionNotJoinable is returned when joining a session that has already started.
	ErrSessionNotJoinable = errors.New("session is not accepting players")
	// ErrNameInvalid is returned for empty or over-long display names.
	ErrNameInvalid = errors.New("display name must be 1-20 characters")
	// ErrNameTaken is returned when the display name collides within the session.
	ErrNameTaken = errors.New("display name already taken in this session")
	// ErrCodeTaken signals a single join code collision; creation retries on it.
	ErrCodeTaken = errors.New("join code already in use")
	// ErrCodeExhausted is returned when join code generation keeps colliding.
	ErrCodeExhausted = errors.New("could not generate a unique join code")
	// ErrTokenInvalid is returned when a participant token fails verification.
	ErrTokenInvalid = errors.New("invalid participant token")
	// ErrAlreadySolved is returned when resubmitting a correctly answered question.
	ErrAlreadySolved = errors.New("question already answered correctly")
	// ErrParticipantKicked is returned when a kicked participant tries to act.
	ErrParticipantKicked = errors.New("participant was removed from the session")
	// ErrStoreUnavailable wraps backing store failures; callers decide on retry.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Kind buckets errors for transport mapping, so clients can distinguish
// "not found" from "already done" from "not allowed right now".
type Kind string

const (
	KindNotFound    Kind = "not_found"
	KindValidation  Kind = "validation"
	KindConflict    Kind = "conflict"
	KindForbidden   Kind = "forbidden"
	KindUnavailable Kind = "unavailable"
	KindUnknown     Kind = "unknown"
)

// KindOf classifies an error into its taxonomy bucket.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrParticipantNotFound),
		errors.Is(err, ErrQuizNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidQuestion),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrNameInvalid):
		return KindValidation
	case errors.Is(err, ErrNameTaken),
		errors.Is(err, ErrCodeTaken),
		errors.Is(err, ErrCodeExhausted),
		errors.Is(err, ErrAlreadySolved):
		return KindConflict
	case errors.Is(err, ErrSessionNotJoinable),
		errors.Is(err, ErrParticipantKicked),
		errors.Is(err, ErrTokenInvalid):
		return KindForbidden
	case errors.Is(err, ErrStoreUnavailable):
		return KindUnavailable
	}
	return KindUnknown
}
