package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"quiz-lobby-service/internal/app"
	"quiz-lobby-service/internal/domain"
)

const (
	activeCodeIndex = "sessions_active_join_code_idx"
	activeNameIndex = "participants_active_name_idx"
)

// Store is the durable implementation of app.Store on Postgres via bun.
// Per-row serialization comes from row locks: UpdateSession, UpdateParticipant
// and ApplyAnswer run inside a transaction that takes SELECT ... FOR UPDATE on
// the row being mutated, so the read the closure sees is never stale.
// Uniqueness invariants (active join codes, display names per session) are
// enforced by partial unique indexes rather than read-then-write checks.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

type sessionRow struct {
	bun.BaseModel `bun:"table:sessions,alias:s"`

	ID        string     `bun:"id,pk"`
	JoinCode  string     `bun:"join_code,notnull"`
	QuizID    string     `bun:"quiz_id,notnull"`
	Status    string     `bun:"status,notnull"`
	CreatedAt time.Time  `bun:"created_at,notnull"`
	StartedAt *time.Time `bun:"started_at"`
	PausedAt  *time.Time `bun:"paused_at"`
}

func (r sessionRow) domain() domain.Session {
	return domain.Session{
		ID:        r.ID,
		JoinCode:  r.JoinCode,
		QuizID:    r.QuizID,
		Status:    domain.Status(r.Status),
		CreatedAt: r.CreatedAt,
		StartedAt: r.StartedAt,
		PausedAt:  r.PausedAt,
	}
}

func newSessionRow(s domain.Session) sessionRow {
	return sessionRow{
		ID:        s.ID,
		JoinCode:  s.JoinCode,
		QuizID:    s.QuizID,
		Status:    string(s.Status),
		CreatedAt: s.CreatedAt,
		StartedAt: s.StartedAt,
		PausedAt:  s.PausedAt,
	}
}

type participantRow struct {
	bun.BaseModel `bun:"table:participants,alias:p"`

	ID              string     `bun:"id,pk"`
	SessionID       string     `bun:"session_id,notnull"`
	DisplayName     string     `bun:"display_name,notnull"`
	CurrentQuestion int        `bun:"current_question,notnull"`
	JoinedAt        time.Time  `bun:"joined_at,notnull"`
	FinishedAt      *time.Time `bun:"finished_at"`
	PenaltyUntil    *time.Time `bun:"penalty_until"`
	Kicked          bool       `bun:"kicked,notnull"`
}

func (r participantRow) domain() domain.Participant {
	return domain.Participant{
		ID:              r.ID,
		SessionID:       r.SessionID,
		DisplayName:     r.DisplayName,
		CurrentQuestion: r.CurrentQuestion,
		JoinedAt:        r.JoinedAt,
		FinishedAt:      r.FinishedAt,
		PenaltyUntil:    r.PenaltyUntil,
		Kicked:          r.Kicked,
	}
}

func newParticipantRow(p domain.Participant) participantRow {
	return participantRow{
		ID:              p.ID,
		SessionID:       p.SessionID,
		DisplayName:     p.DisplayName,
		CurrentQuestion: p.CurrentQuestion,
		JoinedAt:        p.JoinedAt,
		FinishedAt:      p.FinishedAt,
		PenaltyUntil:    p.PenaltyUntil,
		Kicked:          p.Kicked,
	}
}

type answerRow struct {
	bun.BaseModel `bun:"table:answers,alias:a"`

	ParticipantID string    `bun:"participant_id,pk"`
	QuestionIndex int       `bun:"question_index,pk"`
	SubmittedText string    `bun:"submitted_text,notnull"`
	IsCorrect     bool      `bun:"is_correct,notnull"`
	AnsweredAt    time.Time `bun:"answered_at,notnull"`
}

func (s *Store) CreateSession(ctx context.Context, session domain.Session) error {
	row := newSessionRow(session)
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		if isUniqueViolation(err, activeCodeIndex) {
			return domain.ErrCodeTaken
		}
		return wrapStore(err)
	}
	return nil
}

func (s *Store) Session(ctx context.Context, id string) (domain.Session, error) {
	var row sessionRow
	err := s.db.NewSelect().Model(&row).Where("s.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, wrapStore(err)
	}
	return row.domain(), nil
}

func (s *Store) SessionByCode(ctx context.Context, code string) (domain.Session, error) {
	var row sessionRow
	err := s.db.NewSelect().Model(&row).
		Where("s.join_code = ?", code).
		Where("s.status != ?", string(domain.StatusFinished)).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, wrapStore(err)
	}
	return row.domain(), nil
}

func (s *Store) UpdateSession(ctx context.Context, id string, fn func(*domain.Session) error) (domain.Session, error) {
	var updated domain.Session
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var row sessionRow
		err := tx.NewSelect().Model(&row).Where("s.id = ?", id).For("UPDATE").Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrSessionNotFound
		}
		if err != nil {
			return wrapStore(err)
		}

		session := row.domain()
		if err := fn(&session); err != nil {
			return err
		}

		row = newSessionRow(session)
		if _, err := tx.NewUpdate().Model(&row).WherePK().Exec(ctx); err != nil {
			return wrapStore(err)
		}
		updated = session
		return nil
	})
	if err != nil {
		return domain.Session{}, err
	}
	return updated, nil
}

func (s *Store) CreateParticipant(ctx context.Context, participant domain.Participant) error {
	exists, err := s.db.NewSelect().Model((*sessionRow)(nil)).
		Where("s.id = ?", participant.SessionID).Exists(ctx)
	if err != nil {
		return wrapStore(err)
	}
	if !exists {
		return domain.ErrSessionNotFound
	}

	row := newParticipantRow(participant)
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		if isUniqueViolation(err, activeNameIndex) {
			return domain.ErrNameTaken
		}
		return wrapStore(err)
	}
	return nil
}

func (s *Store) Participant(ctx context.Context, id string) (domain.Participant, error) {
	var row participantRow
	err := s.db.NewSelect().Model(&row).Where("p.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	if err != nil {
		return domain.Participant{}, wrapStore(err)
	}
	return row.domain(), nil
}

func (s *Store) Participants(ctx context.Context, sessionID string) ([]domain.Participant, error) {
	exists, err := s.db.NewSelect().Model((*sessionRow)(nil)).
		Where("s.id = ?", sessionID).Exists(ctx)
	if err != nil {
		return nil, wrapStore(err)
	}
	if !exists {
		return nil, domain.ErrSessionNotFound
	}

	var rows []participantRow
	err = s.db.NewSelect().Model(&rows).
		Where("p.session_id = ?", sessionID).
		Order("p.joined_at ASC", "p.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, wrapStore(err)
	}
	participants := make([]domain.Participant, 0, len(rows))
	for _, row := range rows {
		participants = append(participants, row.domain())
	}
	return participants, nil
}

func (s *Store) UpdateParticipant(ctx context.Context, id string, fn func(*domain.Participant) error) (domain.Participant, error) {
	var updated domain.Participant
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		row, err := lockParticipant(ctx, tx, id)
		if err != nil {
			return err
		}

		participant := row.domain()
		if err := fn(&participant); err != nil {
			return err
		}

		row = newParticipantRow(participant)
		if _, err := tx.NewUpdate().Model(&row).WherePK().Exec(ctx); err != nil {
			return wrapStore(err)
		}
		updated = participant
		return nil
	})
	if err != nil {
		return domain.Participant{}, err
	}
	return updated, nil
}

func (s *Store) ApplyAnswer(ctx context.Context, participantID string, questionIndex int,
	fn func(prev *domain.AnswerRecord, p *domain.Participant) (domain.AnswerRecord, error)) (domain.Participant, error) {
	var updated domain.Participant
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		// The participant row lock serializes all answer submissions for this
		// player, so the already-solved guard in fn runs against fresh state.
		row, err := lockParticipant(ctx, tx, participantID)
		if err != nil {
			return err
		}

		var prev *domain.AnswerRecord
		var existing answerRow
		err = tx.NewSelect().Model(&existing).
			Where("a.participant_id = ?", participantID).
			Where("a.question_index = ?", questionIndex).
			Scan(ctx)
		switch {
		case err == nil:
			prev = &domain.AnswerRecord{
				ParticipantID: existing.ParticipantID,
				QuestionIndex: existing.QuestionIndex,
				SubmittedText: existing.SubmittedText,
				IsCorrect:     existing.IsCorrect,
				AnsweredAt:    existing.AnsweredAt,
			}
		case errors.Is(err, sql.ErrNoRows):
			// first submission for this pair
		default:
			return wrapStore(err)
		}

		participant := row.domain()
		record, err := fn(prev, &participant)
		if err != nil {
			return err
		}

		newRecord := answerRow{
			ParticipantID: record.ParticipantID,
			QuestionIndex: record.QuestionIndex,
			SubmittedText: record.SubmittedText,
			IsCorrect:     record.IsCorrect,
			AnsweredAt:    record.AnsweredAt,
		}
		_, err = tx.NewInsert().Model(&newRecord).
			On("CONFLICT (participant_id, question_index) DO UPDATE").
			Set("submitted_text = EXCLUDED.submitted_text").
			Set("is_correct = EXCLUDED.is_correct").
			Set("answered_at = EXCLUDED.answered_at").
			Exec(ctx)
		if err != nil {
			return wrapStore(err)
		}

		row = newParticipantRow(participant)
		if _, err := tx.NewUpdate().Model(&row).WherePK().Exec(ctx); err != nil {
			return wrapStore(err)
		}
		updated = participant
		return nil
	})
	if err != nil {
		return domain.Participant{}, err
	}
	return updated, nil
}

func lockParticipant(ctx context.Context, tx bun.Tx, id string) (participantRow, error) {
	var row participantRow
	err := tx.NewSelect().Model(&row).Where("p.id = ?", id).For("UPDATE").Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return participantRow{}, domain.ErrParticipantNotFound
	}
	if err != nil {
		return participantRow{}, wrapStore(err)
	}
	return row, nil
}

// wrapStore surfaces backing store failures as ErrStoreUnavailable while
// letting domain errors pass through untouched.
func wrapStore(err error) error {
	if err == nil {
		return nil
	}
	if domain.KindOf(err) != domain.KindUnknown {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr pgdriver.Error
	if !errors.As(err, &pgErr) {
		return false
	}
	if pgErr.Field('C') != "23505" {
		return false
	}
	return constraint == "" || pgErr.Field('n') == constraint
}

var _ app.Store = (*Store)(nil)
