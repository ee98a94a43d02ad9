package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"hifz-quiz-service/internal/domain"
)

// PlayerStore keeps player profiles in memory. It also ranks them for the
// leaderboard when Redis is not configured.
type PlayerStore struct {
	clock func() time.Time

	mu      sync.RWMutex
	players map[string]domain.Player
}

func NewPlayerStore() *PlayerStore {
	return &PlayerStore{clock: time.Now, players: make(map[string]domain.Player)}
}

func (s *PlayerStore) EnsurePlayer(_ context.Context, playerID, username string) (domain.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.players[playerID]; ok {
		return clonePlayer(p), nil
	}
	now := s.clock()
	p := domain.Player{ID: playerID, Username: username, CreatedAt: now, UpdatedAt: now}
	s.players[playerID] = p
	return clonePlayer(p), nil
}

func (s *PlayerStore) LoadPlayer(_ context.Context, playerID string) (domain.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[playerID]
	if !ok {
		return domain.Player{}, domain.ErrPlayerNotFound
	}
	return clonePlayer(p), nil
}

func (s *PlayerStore) SavePlayer(_ context.Context, player domain.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players[player.ID] = clonePlayer(player)
	return nil
}

// UpdateXP is a no-op: the ranking is derived from the stored players.
func (s *PlayerStore) UpdateXP(_ context.Context, _ domain.Player) error { return nil }

// Top ranks players by XP, ties by username.
func (s *PlayerStore) Top(_ context.Context, limit int) (domain.Leaderboard, error) {
	s.mu.RLock()
	entries := make([]domain.LeaderboardEntry, 0, len(s.players))
	for _, p := range s.players {
		entries = append(entries, domain.LeaderboardEntry{PlayerID: p.ID, Username: p.Username, XP: p.XP})
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].XP != entries[j].XP {
			return entries[i].XP > entries[j].XP
		}
		return entries[i].Username < entries[j].Username
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return domain.Leaderboard{Entries: entries, UpdatedAt: s.clock()}, nil
}

func clonePlayer(p domain.Player) domain.Player {
	p.Inventory = append([]string(nil), p.Inventory...)
	return p
}
