package memory

import (
	"sync"

	"hifz-quiz-service/internal/app"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
// A player owns at most one session at a time.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*app.Session
	byPlayer map[string]string
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*app.Session),
		byPlayer: make(map[string]string),
	}
}

func (s *SessionStore) Put(session *app.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.byPlayer[session.PlayerID()]; ok && prev != session.ID() {
		delete(s.sessions, prev)
	}
	s.sessions[session.ID()] = session
	s.byPlayer[session.PlayerID()] = session.ID()
}

func (s *SessionStore) Get(sessionID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	return session, ok
}

// ActiveForPlayer returns the player's session unless it already completed.
func (s *SessionStore) ActiveForPlayer(playerID string) (*app.Session, bool) {
	s.mu.RLock()
	id, ok := s.byPlayer[playerID]
	session := s.sessions[id]
	s.mu.RUnlock()
	if !ok || session == nil || session.Finished() {
		return nil, false
	}
	return session, true
}

func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return
	}
	delete(s.sessions, sessionID)
	if s.byPlayer[session.PlayerID()] == sessionID {
		delete(s.byPlayer, session.PlayerID())
	}
}
