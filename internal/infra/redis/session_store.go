package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"hifz-quiz-service/internal/app"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Sessions and the player index stay local so the in-process broadcast keeps
// working and a player never owns two sessions. Redis mirrors liveness so
// other instances can tell a player is mid-session; the markers are
// refreshed on every read of an unfinished session.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.Session
	byPlayer map[string]string
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*app.Session),
		byPlayer: make(map[string]string),
	}
}

func (s *SessionStore) Put(session *app.Session) {
	ctx := context.Background()
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.byPlayer[session.PlayerID()]; ok && prev != session.ID() {
		delete(s.sessions, prev)
		_ = s.client.Del(ctx, s.key(prev)).Err()
	}
	s.evictExpiredLocked(ctx)
	s.sessions[session.ID()] = session
	s.byPlayer[session.PlayerID()] = session.ID()
	s.touch(ctx, session)
}

// Get returns a stored session and extends its liveness while it is unfinished.
func (s *SessionStore) Get(sessionID string) (*app.Session, bool) {
	s.mu.RLock()
	session, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if ok && !session.Finished() {
		s.touch(context.Background(), session)
	}
	return session, ok
}

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
	ctx := context.Background()
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return
	}
	s.removeLocked(ctx, session)
}

// evictExpiredLocked drops finished sessions whose liveness marker has
// expired. Unfinished sessions stay until replaced or deleted.
func (s *SessionStore) evictExpiredLocked(ctx context.Context) {
	var finished []*app.Session
	for _, session := range s.sessions {
		if session.Finished() {
			finished = append(finished, session)
		}
	}
	if len(finished) == 0 {
		return
	}

	pipe := s.client.Pipeline()
	checks := make([]*redis.IntCmd, len(finished))
	for i, session := range finished {
		checks[i] = pipe.Exists(ctx, s.key(session.ID()))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return
	}
	for i, session := range finished {
		if checks[i].Val() == 0 {
			s.removeLocked(ctx, session)
		}
	}
}

func (s *SessionStore) removeLocked(ctx context.Context, session *app.Session) {
	delete(s.sessions, session.ID())
	_ = s.client.Del(ctx, s.key(session.ID())).Err()
	if s.byPlayer[session.PlayerID()] == session.ID() {
		delete(s.byPlayer, session.PlayerID())
		_ = s.client.Del(ctx, s.playerKey(session.PlayerID())).Err()
	}
}

// touch writes the liveness markers; best effort.
func (s *SessionStore) touch(ctx context.Context, session *app.Session) {
	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(session.ID()), session.PlayerID(), s.ttl)
	pipe.Set(ctx, s.playerKey(session.PlayerID()), session.ID(), s.ttl)
	_, _ = pipe.Exec(ctx)
}

func (s *SessionStore) key(sessionID string) string {
	return "quiz:session:" + sessionID
}

func (s *SessionStore) playerKey(playerID string) string {
	return "quiz:player:" + playerID + ":session"
}
