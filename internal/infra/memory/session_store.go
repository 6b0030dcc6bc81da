package memory

import (
	"context"
	"sync"

	"quiz-lobby-service/internal/app"
	"quiz-lobby-service/internal/domain"
)

// Store is the in-memory implementation of app.Store. A single mutex
// serializes all mutations, which trivially satisfies the per-row
// serialization guarantees; reads hand out copies so callers never share
// mutable state with the store.
type Store struct {
	mu           sync.RWMutex
	sessions     map[string]domain.Session
	participants map[string]domain.Participant
	joinOrder    map[string][]string                    // sessionID -> participant IDs in join order
	answers      map[string]map[int]domain.AnswerRecord // participantID -> question index -> record
}

func NewStore() *Store {
	return &Store{
		sessions:     make(map[string]domain.Session),
		participants: make(map[string]domain.Participant),
		joinOrder:    make(map[string][]string),
		answers:      make(map[string]map[int]domain.AnswerRecord),
	}
}

func (s *Store) CreateSession(_ context.Context, session domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.sessions {
		if existing.JoinCode == session.JoinCode && existing.Status.Active() {
			return domain.ErrCodeTaken
		}
	}
	s.sessions[session.ID] = session
	return nil
}

func (s *Store) Session(_ context.Context, id string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return session, nil
}

func (s *Store) SessionByCode(_ context.Context, code string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, session := range s.sessions {
		if session.JoinCode == code && session.Status.Active() {
			return session, nil
		}
	}
	return domain.Session{}, domain.ErrSessionNotFound
}

func (s *Store) UpdateSession(_ context.Context, id string, fn func(*domain.Session) error) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err := fn(&session); err != nil {
		return domain.Session{}, err
	}
	s.sessions[id] = session
	return session, nil
}

func (s *Store) CreateParticipant(_ context.Context, participant domain.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[participant.SessionID]; !ok {
		return domain.ErrSessionNotFound
	}
	key := domain.NameKey(participant.DisplayName)
	for _, id := range s.joinOrder[participant.SessionID] {
		existing := s.participants[id]
		if !existing.Kicked && domain.NameKey(existing.DisplayName) == key {
			return domain.ErrNameTaken
		}
	}
	s.participants[participant.ID] = participant
	s.joinOrder[participant.SessionID] = append(s.joinOrder[participant.SessionID], participant.ID)
	return nil
}

func (s *Store) Participant(_ context.Context, id string) (domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	participant, ok := s.participants[id]
	if !ok {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	return participant, nil
}

func (s *Store) Participants(_ context.Context, sessionID string) ([]domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return nil, domain.ErrSessionNotFound
	}
	ids := s.joinOrder[sessionID]
	participants := make([]domain.Participant, 0, len(ids))
	for _, id := range ids {
		participants = append(participants, s.participants[id])
	}
	return participants, nil
}

func (s *Store) UpdateParticipant(_ context.Context, id string, fn func(*domain.Participant) error) (domain.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	participant, ok := s.participants[id]
	if !ok {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	if err := fn(&participant); err != nil {
		return domain.Participant{}, err
	}
	s.participants[id] = participant
	return participant, nil
}

func (s *Store) ApplyAnswer(_ context.Context, participantID string, questionIndex int,
	fn func(prev *domain.AnswerRecord, p *domain.Participant) (domain.AnswerRecord, error)) (domain.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	participant, ok := s.participants[participantID]
	if !ok {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}

	var prev *domain.AnswerRecord
	if record, ok := s.answers[participantID][questionIndex]; ok {
		prev = &record
	}

	record, err := fn(prev, &participant)
	if err != nil {
		return domain.Participant{}, err
	}

	if s.answers[participantID] == nil {
		s.answers[participantID] = make(map[int]domain.AnswerRecord)
	}
	s.answers[participantID][questionIndex] = record
	s.participants[participantID] = participant
	return participant, nil
}

// Answer exposes the answer of record, mainly for tests and debugging reads.
func (s *Store) Answer(_ context.Context, participantID string, questionIndex int) (domain.AnswerRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.answers[participantID][questionIndex]
	return record, ok
}

var _ app.Store = (*Store)(nil)
