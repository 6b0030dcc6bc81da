package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"quiz-lobby-service/internal/domain"
)

// codeAttempts bounds join code generation. The code space is small (10,000
// four-digit codes) so collisions are retried rather than trusted on first try.
const codeAttempts = 10

// LobbyService contains the core session use cases: the host drives a session
// through its lifecycle while players join, answer, and race through the quiz.
type LobbyService struct {
	store   Store
	quizzes QuizRepository
	feed    ChangeFeed
	tokens  *TokenIssuer
	now     func() time.Time
	code    func() string
}

// Option customizes a LobbyService, mainly for deterministic tests.
type Option func(*LobbyService)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(s *LobbyService) { s.now = now }
}

// WithCodeSource replaces the join code generator.
func WithCodeSource(code func() string) Option {
	return func(s *LobbyService) { s.code = code }
}

func NewLobbyService(store Store, quizzes QuizRepository, feed ChangeFeed, tokens *TokenIssuer, opts ...Option) *LobbyService {
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	s := &LobbyService{
		store:   store,
		quizzes: quizzes,
		feed:    feed,
		tokens:  tokens,
		now:     time.Now,
		code:    func() string { return fmt.Sprintf("%04d", rnd.Intn(10000)) },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSession verifies the quiz exists and creates a waiting session with a
// fresh join code, retrying on collisions with other unfinished sessions.
func (s *LobbyService) CreateSession(ctx context.Context, quizID string) (domain.Session, error) {
	if _, err := s.quizzes.GetQuiz(ctx, quizID); err != nil {
		return domain.Session{}, err
	}

	for attempt := 0; attempt < codeAttempts; attempt++ {
		session := domain.Session{
			ID:        uuid.NewString(),
			JoinCode:  s.code(),
			QuizID:    quizID,
			Status:    domain.StatusWaiting,
			CreatedAt: s.now(),
		}
		err := s.store.CreateSession(ctx, session)
		if errors.Is(err, domain.ErrCodeTaken) {
			continue
		}
		if err != nil {
			return domain.Session{}, err
		}
		return session, nil
	}
	return domain.Session{}, domain.ErrCodeExhausted
}

// Session returns a session by ID.
func (s *LobbyService) Session(ctx context.Context, sessionID string) (domain.Session, error) {
	return s.store.Session(ctx, sessionID)
}

// SessionByCode locates a session by its join code.
func (s *LobbyService) SessionByCode(ctx context.Context, code string) (domain.Session, error) {
	return s.store.SessionByCode(ctx, strings.TrimSpace(code))
}

// SetStatus moves a session through its state machine. The transition is
// validated against the freshly-read status inside the store's update, so a
// double-issued host command cannot produce an illegal edge.
func (s *LobbyService) SetStatus(ctx context.Context, sessionID string, next domain.Status) (domain.Session, error) {
	session, err := s.store.UpdateSession(ctx, sessionID, func(cur *domain.Session) error {
		return cur.ApplyStatus(next, s.now())
	})
	if err != nil {
		return domain.Session{}, err
	}
	s.feed.Publish(ctx, sessionID, Event{Type: EventStatusChanged, SessionID: sessionID, Session: &session})
	return session, nil
}

// Join adds a player to a waiting session and returns the participant along
// with a signed identity token for later requests.
func (s *LobbyService) Join(ctx context.Context, sessionID, displayName string) (domain.Participant, string, error) {
	name, err := domain.NormalizeDisplayName(displayName)
	if err != nil {
		return domain.Participant{}, "", err
	}

	session, err := s.store.Session(ctx, sessionID)
	if err != nil {
		return domain.Participant{}, "", err
	}
	if session.Status != domain.StatusWaiting {
		return domain.Participant{}, "", domain.ErrSessionNotJoinable
	}

	participant := domain.Participant{
		ID:          uuid.NewString(),
		SessionID:   session.ID,
		DisplayName: name,
		JoinedAt:    s.now(),
	}
	if err := s.store.CreateParticipant(ctx, participant); err != nil {
		return domain.Participant{}, "", err
	}

	token, err := s.tokens.Issue(participant.ID, session.ID)
	if err != nil {
		return domain.Participant{}, "", err
	}

	s.feed.Publish(ctx, session.ID, Event{Type: EventParticipantJoined, SessionID: session.ID, Participant: &participant})
	return participant, token, nil
}

// ResolveToken maps an identity token back to a participant ID.
func (s *LobbyService) ResolveToken(token string) (string, error) {
	return s.tokens.Resolve(token)
}

// CurrentParticipant resolves a token to its participant record. Kicked
// participants resolve but are reported as removed so clients can clear
// their stored identity.
func (s *LobbyService) CurrentParticipant(ctx context.Context, token string) (domain.Participant, error) {
	id, err := s.tokens.Resolve(token)
	if err != nil {
		return domain.Participant{}, err
	}
	participant, err := s.store.Participant(ctx, id)
	if err != nil {
		return domain.Participant{}, err
	}
	if participant.Kicked {
		return domain.Participant{}, domain.ErrParticipantKicked
	}
	return participant, nil
}

// Kick soft-deletes a participant. The record stays for audit; the player
// disappears from all views. Kicking twice is a no-op.
func (s *LobbyService) Kick(ctx context.Context, participantID string) error {
	participant, err := s.store.UpdateParticipant(ctx, participantID, func(p *domain.Participant) error {
		p.Kicked = true
		return nil
	})
	if err != nil {
		return err
	}
	s.feed.Publish(ctx, participant.SessionID, Event{
		Type:          EventParticipantRemoved,
		SessionID:     participant.SessionID,
		ParticipantID: participant.ID,
	})
	return nil
}

// SubmitAnswer records and judges one answer. The whole sequence (check the
// existing answer of record, evaluate, upsert, advance or penalize) runs
// atomically per (participant, question index) inside the store. A recorded
// correct answer is final: resubmission fails with ErrAlreadySolved and an
// incorrect write can never overwrite it.
//
// A submission arriving during an active penalty window is still accepted and
// judged; the penalty gate lives client-side.
func (s *LobbyService) SubmitAnswer(ctx context.Context, participantID string, questionIndex int, text string) (domain.AnswerResult, error) {
	participant, err := s.store.Participant(ctx, participantID)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	if participant.Kicked {
		return domain.AnswerResult{}, domain.ErrParticipantKicked
	}

	session, err := s.store.Session(ctx, participant.SessionID)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	quiz, err := s.quizzes.GetQuiz(ctx, session.QuizID)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	if questionIndex < 0 || questionIndex >= len(quiz.Questions) {
		return domain.AnswerResult{}, domain.ErrInvalidQuestion
	}
	question := quiz.Questions[questionIndex]

	var result domain.AnswerResult
	updated, err := s.store.ApplyAnswer(ctx, participantID, questionIndex,
		func(prev *domain.AnswerRecord, p *domain.Participant) (domain.AnswerRecord, error) {
			if prev != nil && prev.IsCorrect {
				return domain.AnswerRecord{}, domain.ErrAlreadySolved
			}

			now := s.now()
			correct := Evaluate(question, text)
			record := domain.AnswerRecord{
				ParticipantID: participantID,
				QuestionIndex: questionIndex,
				SubmittedText: strings.TrimSpace(text),
				IsCorrect:     correct,
				AnsweredAt:    now,
			}

			if correct {
				if next := questionIndex + 1; next > p.CurrentQuestion {
					p.CurrentQuestion = next
				}
				if p.CurrentQuestion >= len(quiz.Questions) && p.FinishedAt == nil {
					finished := now
					p.FinishedAt = &finished
				}
				p.PenaltyUntil = nil
				result = domain.AnswerResult{Correct: true, Finished: p.FinishedAt != nil}
			} else {
				penalty := quiz.PenaltySeconds()
				until := now.Add(time.Duration(penalty) * time.Second)
				p.PenaltyUntil = &until
				result = domain.AnswerResult{Correct: false, PenaltySeconds: penalty}
			}
			return record, nil
		})
	if err != nil {
		return domain.AnswerResult{}, err
	}

	s.feed.Publish(ctx, updated.SessionID, Event{Type: EventParticipantUpdated, SessionID: updated.SessionID, Participant: &updated})
	return result, nil
}

// ClearPenalty removes an elapsed penalty window. Clients call this when
// their countdown ends; clearing an absent penalty is a no-op.
func (s *LobbyService) ClearPenalty(ctx context.Context, participantID string) error {
	participant, err := s.store.UpdateParticipant(ctx, participantID, func(p *domain.Participant) error {
		p.PenaltyUntil = nil
		return nil
	})
	if err != nil {
		return err
	}
	s.feed.Publish(ctx, participant.SessionID, Event{Type: EventParticipantUpdated, SessionID: participant.SessionID, Participant: &participant})
	return nil
}

// Progress returns a participant's play state for reconnecting clients.
func (s *LobbyService) Progress(ctx context.Context, participantID string) (domain.Participant, error) {
	return s.store.Participant(ctx, participantID)
}

// SessionView is the canonical full-state read: the session plus its visible
// participants in join order. It is always available regardless of the change
// feed, so clients can recover from missed events.
func (s *LobbyService) SessionView(ctx context.Context, sessionID string) (domain.SessionView, error) {
	session, err := s.store.Session(ctx, sessionID)
	if err != nil {
		return domain.SessionView{}, err
	}
	all, err := s.store.Participants(ctx, sessionID)
	if err != nil {
		return domain.SessionView{}, err
	}
	visible := make([]domain.Participant, 0, len(all))
	for _, p := range all {
		if !p.Kicked {
			visible = append(visible, p)
		}
	}
	return domain.SessionView{Session: session, Participants: visible}, nil
}

// Leaderboard derives the ranked standings for a session.
func (s *LobbyService) Leaderboard(ctx context.Context, sessionID string) ([]domain.LeaderboardEntry, error) {
	session, err := s.store.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	quiz, err := s.quizzes.GetQuiz(ctx, session.QuizID)
	if err != nil {
		return nil, err
	}
	participants, err := s.store.Participants(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return Rank(participants, len(quiz.Questions)), nil
}

// Subscribe returns the change-feed stream for a session.
func (s *LobbyService) Subscribe(ctx context.Context, sessionID string) (<-chan Event, func(), error) {
	if _, err := s.store.Session(ctx, sessionID); err != nil {
		return nil, nil, err
	}
	return s.feed.Subscribe(ctx, sessionID)
}
